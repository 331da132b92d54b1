package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/sakif/quotefault/internal/directory"
	"github.com/sakif/quotefault/internal/model"
)

// MemberService exposes the directory's quotable members.
type MemberService struct {
	dir directory.Directory
}

func NewMemberService(dir directory.Directory) *MemberService {
	return &MemberService{dir: dir}
}

// ListQuotable returns the members that may be quoted, sorted by uid.
func (s *MemberService) ListQuotable(ctx context.Context) ([]model.User, error) {
	members, err := s.dir.QuotableMembers(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing quotable members: %w", directoryError(err))
	}
	out := make([]model.User, len(members))
	copy(out, members)
	sort.Slice(out, func(i, j int) bool { return out[i].UID < out[j].UID })
	return out, nil
}
