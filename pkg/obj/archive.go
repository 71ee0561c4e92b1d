package obj

import (
	pkgerr "github.com/pkg/errors"

	"github.com/blacktop/bartleby/pkg/ar"
)

func parseArchive(data []byte) (*Archive, error) {
	members, err := ar.Parse(data)
	if err != nil {
		return nil, pkgerr.Wrap(err, "failed to parse archive")
	}
	out := &Archive{Members: make([]Member, 0, len(members))}
	for _, m := range members {
		out.Members = append(out.Members, Member{Name: m.Name, Data: m.Data})
	}
	return out, nil
}
