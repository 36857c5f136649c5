package wire

import (
	"bytes"
	"io"

	"github.com/Polqt/crdtcollab/internal/container/cid"
	"github.com/Polqt/crdtcollab/internal/crdterr"
	"github.com/Polqt/crdtcollab/internal/oplog"
)

// EncodeChangesWithContainers prefixes EncodeChanges' output with a
// container table: every ContainerID an exported op's ContainerIdx might
// refer to, in the index order the exporting document assigned them. A
// ContainerIdx is only ever meaningful relative to the table it travels
// with — two replicas assign indices to containers in whatever order they
// first touched them locally, so the raw integer is never portable on its
// own (see DESIGN.md).
func EncodeChangesWithContainers(changes []*oplog.Change, containers []cid.ContainerID) []byte {
	var buf bytes.Buffer
	writeVarint(&buf, uint64(len(containers)))
	for _, c := range containers {
		s := c.String()
		writeVarint(&buf, uint64(len(s)))
		buf.WriteString(s)
	}
	buf.Write(EncodeChanges(changes))
	return buf.Bytes()
}

// DecodeChangesWithContainers reverses EncodeChangesWithContainers. The
// returned ContainerIDs are indexed exactly as the exporting side's table;
// the caller remaps every op's ContainerIdx through this table into its own
// local compact index before integrating.
func DecodeChangesWithContainers(data []byte) ([]cid.ContainerID, []*oplog.Change, error) {
	r := bytes.NewReader(data)
	n, err := readVarint(r)
	if err != nil {
		return nil, nil, err
	}
	containers := make([]cid.ContainerID, n)
	for i := range containers {
		l, err := readVarint(r)
		if err != nil {
			return nil, nil, err
		}
		b := make([]byte, l)
		if _, err := io.ReadFull(r, b); err != nil {
			return nil, nil, crdterr.Wrap(crdterr.Decode, err, "read container table entry")
		}
		cID, err := cid.Parse(string(b))
		if err != nil {
			return nil, nil, err
		}
		containers[i] = cID
	}
	rest, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, crdterr.Wrap(crdterr.Decode, err, "read remaining change bytes")
	}
	changes, err := DecodeChanges(rest)
	if err != nil {
		return nil, nil, err
	}
	return containers, changes, nil
}
