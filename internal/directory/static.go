package directory

import (
	"context"
	"fmt"
	"sort"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/sakif/quotefault/internal/model"
)

// Member is one roster entry of a Static directory.
type Member struct {
	UID string `koanf:"uid"`
	CN  string `koanf:"cn"`

	// Quotable defaults to true when omitted.
	Quotable *bool `koanf:"quotable"`
}

// Static is an in-memory directory, typically loaded from a YAML roster:
//
//	members:
//	  - uid: alice
//	    cn: Alice Liddell
//	  - uid: bot
//	    cn: Build Bot
//	    quotable: false
type Static struct {
	names    map[string]string
	quotable []model.User
}

var _ Directory = (*Static)(nil)

// NewStatic builds a directory from members.
func NewStatic(members []Member) *Static {
	s := &Static{names: make(map[string]string, len(members))}
	for _, m := range members {
		s.names[m.UID] = m.CN
		if m.Quotable == nil || *m.Quotable {
			s.quotable = append(s.quotable, model.User{UID: m.UID, CN: m.CN})
		}
	}
	sort.Slice(s.quotable, func(i, j int) bool { return s.quotable[i].UID < s.quotable[j].UID })
	return s
}

// LoadStatic reads a YAML roster file.
func LoadStatic(path string) (*Static, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("directory: loading roster %s: %w", path, err)
	}

	var members []Member
	if err := k.Unmarshal("members", &members); err != nil {
		return nil, fmt.Errorf("directory: parsing roster %s: %w", path, err)
	}
	for i, m := range members {
		if m.UID == "" {
			return nil, fmt.Errorf("directory: roster %s: member %d has no uid", path, i)
		}
	}
	return NewStatic(members), nil
}

func (s *Static) Resolve(_ context.Context, uids []string) (map[string]string, error) {
	out := make(map[string]string, len(uids))
	for _, uid := range uids {
		if cn, ok := s.names[uid]; ok {
			out[uid] = cn
		}
	}
	return out, nil
}

func (s *Static) QuotableMembers(context.Context) ([]model.User, error) {
	out := make([]model.User, len(s.quotable))
	copy(out, s.quotable)
	return out, nil
}
