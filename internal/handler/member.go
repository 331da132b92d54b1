package handler

import (
	"net/http"
)

// MemberHandler lists who can be quoted.
type MemberHandler struct {
	members MemberService
}

func NewMemberHandler(members MemberService) *MemberHandler {
	return &MemberHandler{members: members}
}

// HandleList returns the quotable members as [{uid, cn}], sorted by uid.
//
// HTTP: GET /api/users
func (h *MemberHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	members, err := h.members.ListQuotable(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}
