package model

// NodeType discriminates the closed set of entities reachable through the
// global ID scheme. Adding a variant here requires a matching case in
// resolver.ResolveType and resolver.ResolveNode.
type NodeType string

const (
	NodeTypeUser                  NodeType = "User"
	NodeTypeStory                 NodeType = "Story"
	NodeTypePublication           NodeType = "Publication"
	NodeTypePublicationInvitation NodeType = "PublicationInvitation"
	NodeTypeCollection            NodeType = "Collection"
	NodeTypeComment               NodeType = "Comment"
	NodeTypeNotification          NodeType = "Notification"
	NodeTypeTag                   NodeType = "Tag"
)

func (nt NodeType) Valid() bool {
	switch nt {
	case NodeTypeUser, NodeTypeStory, NodeTypePublication, NodeTypePublicationInvitation,
		NodeTypeCollection, NodeTypeComment, NodeTypeNotification, NodeTypeTag:
		return true
	default:
		return false
	}
}

// Node is implemented by every entity exposed through the global ID system.
type Node interface {
	NodeType() NodeType
	NodeID() int64
}

func (u *User) NodeType() NodeType                  { return NodeTypeUser }
func (u *User) NodeID() int64                       { return u.ID }
func (s *Story) NodeType() NodeType                 { return NodeTypeStory }
func (s *Story) NodeID() int64                      { return s.ID }
func (p *Publication) NodeType() NodeType           { return NodeTypePublication }
func (p *Publication) NodeID() int64                { return p.ID }
func (i *PublicationInvitation) NodeType() NodeType { return NodeTypePublicationInvitation }
func (i *PublicationInvitation) NodeID() int64      { return i.ID }
func (c *Collection) NodeType() NodeType            { return NodeTypeCollection }
func (c *Collection) NodeID() int64                 { return c.ID }
func (c *Comment) NodeType() NodeType               { return NodeTypeComment }
func (c *Comment) NodeID() int64                    { return c.ID }
func (n *Notification) NodeType() NodeType          { return NodeTypeNotification }
func (n *Notification) NodeID() int64               { return n.ID }
func (t *Tag) NodeType() NodeType                   { return NodeTypeTag }
func (t *Tag) NodeID() int64                        { return t.ID }

// Ref is a decoded global ID: a type tag plus the numeric id it points at.
type Ref struct {
	Type NodeType
	ID   int64
}
