package memory

import (
	"context"

	"github.com/parallel588/margaret/internal/model"
	"github.com/parallel588/margaret/internal/pagination"
	"github.com/parallel588/margaret/internal/store"
)

var _ store.Publications = (*Store)(nil)

func (s *Store) PublicationByID(ctx context.Context, id int64) (*model.Publication, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clonePublication(s.publications[id]), nil
}

func (s *Store) PublicationByName(ctx context.Context, name string) (*model.Publication, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.publications {
		if p.Name == name {
			return clonePublication(p), nil
		}
	}
	return nil, nil
}

func (s *Store) CreatePublication(ctx context.Context, input store.NewPublication) (*model.Publication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if input.Name == "" {
		return nil, store.Invalid("name", "can't be blank")
	}
	if store.Slugify(input.Name) != input.Name {
		return nil, store.Invalid("name", "must contain only lowercase letters, digits and dashes")
	}
	for _, p := range s.publications {
		if p.Name == input.Name {
			return nil, store.Invalid("name", "has already been taken")
		}
	}
	if s.users[input.OwnerID] == nil {
		return nil, store.Invalid("owner", "does not exist")
	}

	pub := &model.Publication{
		ID:          s.nextSeq(),
		Name:        input.Name,
		DisplayName: input.DisplayName,
		Description: input.Description,
		Website:     input.Website,
		InsertedAt:  s.now(),
	}
	if pub.DisplayName == "" {
		pub.DisplayName = pub.Name
	}
	s.publications[pub.ID] = pub
	s.memberships[s.nextSeq()] = &model.PublicationMembership{
		ID:            s.nextID,
		PublicationID: pub.ID,
		MemberID:      input.OwnerID,
		Role:          model.RoleOwner,
		InsertedAt:    s.now(),
	}
	return clonePublication(pub), nil
}

func (s *Store) MembershipOf(ctx context.Context, publicationID, userID int64) (*model.PublicationMembership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.memberships {
		if m.PublicationID == publicationID && m.MemberID == userID {
			out := *m
			return &out, nil
		}
	}
	return nil, nil
}

func (s *Store) Members(ctx context.Context, publicationID int64) pagination.Source {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []pagination.Row
	for _, m := range s.memberships {
		if m.PublicationID != publicationID {
			continue
		}
		member := s.users[m.MemberID]
		if member == nil || !member.Active() {
			continue
		}
		rows = append(rows, pagination.Row{
			Node: cloneUser(member),
			Key:  m.ID,
			At:   m.InsertedAt,
			Role: m.Role,
		})
	}
	return sortRows(rows)
}

func (s *Store) AddMember(ctx context.Context, publicationID, userID int64, role model.PublicationRole) (*model.PublicationMembership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.publications[publicationID] == nil {
		return nil, store.Invalid("publication", "does not exist")
	}
	if s.users[userID] == nil {
		return nil, store.Invalid("member", "does not exist")
	}
	for _, m := range s.memberships {
		if m.PublicationID == publicationID && m.MemberID == userID {
			return nil, store.Invalid("member", "is already a member")
		}
	}

	m := &model.PublicationMembership{
		ID:            s.nextSeq(),
		PublicationID: publicationID,
		MemberID:      userID,
		Role:          role,
		InsertedAt:    s.now(),
	}
	s.memberships[m.ID] = m
	out := *m
	return &out, nil
}

func (s *Store) RemoveMember(ctx context.Context, publicationID, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, m := range s.memberships {
		if m.PublicationID == publicationID && m.MemberID == userID {
			delete(s.memberships, id)
		}
	}
	return nil
}

func (s *Store) InvitationByID(ctx context.Context, id int64) (*model.PublicationInvitation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if inv := s.invitations[id]; inv != nil {
		out := *inv
		return &out, nil
	}
	return nil, nil
}

func (s *Store) Invitations(ctx context.Context, publicationID int64) pagination.Source {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []pagination.Row
	for _, inv := range s.invitations {
		if inv.PublicationID != publicationID {
			continue
		}
		out := *inv
		rows = append(rows, pagination.Row{Node: &out, Key: inv.ID})
	}
	return sortRows(rows)
}

func (s *Store) CreateInvitation(ctx context.Context, input store.NewInvitation) (*model.PublicationInvitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.publications[input.PublicationID] == nil {
		return nil, store.Invalid("publication", "does not exist")
	}
	invitee := s.users[input.InviteeID]
	if invitee == nil || !invitee.Active() {
		return nil, store.Invalid("invitee", "does not exist")
	}
	for _, m := range s.memberships {
		if m.PublicationID == input.PublicationID && m.MemberID == input.InviteeID {
			return nil, store.Invalid("invitee", "is already a member")
		}
	}
	for _, inv := range s.invitations {
		if inv.PublicationID == input.PublicationID && inv.InviteeID == input.InviteeID && inv.Status == model.InvitationPending {
			return nil, store.Invalid("invitee", "already has a pending invitation")
		}
	}

	inv := &model.PublicationInvitation{
		ID:            s.nextSeq(),
		PublicationID: input.PublicationID,
		InviteeID:     input.InviteeID,
		InviterID:     input.InviterID,
		Role:          input.Role,
		Status:        model.InvitationPending,
		InsertedAt:    s.now(),
	}
	if inv.Role == "" {
		inv.Role = model.RoleWriter
	}
	s.invitations[inv.ID] = inv
	out := *inv
	return &out, nil
}

func (s *Store) UpdateInvitationStatus(ctx context.Context, id int64, status model.InvitationStatus) (*model.PublicationInvitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv := s.invitations[id]
	if inv == nil {
		return nil, nil
	}
	if inv.Status != model.InvitationPending {
		return nil, store.Invalid("invitation", "has already been resolved")
	}
	inv.Status = status
	if status == model.InvitationAccepted {
		s.memberships[s.nextSeq()] = &model.PublicationMembership{
			ID:            s.nextID,
			PublicationID: inv.PublicationID,
			MemberID:      inv.InviteeID,
			Role:          inv.Role,
			InsertedAt:    s.now(),
		}
	}
	out := *inv
	return &out, nil
}

func clonePublication(p *model.Publication) *model.Publication {
	if p == nil {
		return nil
	}
	out := *p
	return &out
}
