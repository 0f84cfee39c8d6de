// Package relay implements the opaque identifier scheme shared by the global
// object identification protocol and connection cursors. Both encodings are
// reversible base64 behind opaque string types so the internal shape can
// change without breaking identifiers already held by clients.
package relay

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/parallel588/margaret/internal/gqlerrors"
	"github.com/parallel588/margaret/internal/model"
)

const cursorPrefix = "cursor:v1:"

// ToGlobalID encodes (type tag, numeric id) into the wire representation.
func ToGlobalID(nt model.NodeType, id int64) string {
	raw := fmt.Sprintf("%s:%d", nt, id)
	return base64.StdEncoding.EncodeToString([]byte(raw))
}

// FromGlobalID decodes a client-supplied global ID. A malformed value yields
// InvalidReference; the caller decides whether that surfaces as an error
// (mutation input) or as a null node (node query).
func FromGlobalID(s string) (model.Ref, error) {
	decoded, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return model.Ref{}, gqlerrors.InvalidReference(s)
	}
	typ, rawID, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return model.Ref{}, gqlerrors.InvalidReference(s)
	}
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || id <= 0 {
		return model.Ref{}, gqlerrors.InvalidReference(s)
	}
	nt := model.NodeType(typ)
	if !nt.Valid() {
		return model.Ref{}, gqlerrors.InvalidReference(s)
	}
	return model.Ref{Type: nt, ID: id}, nil
}

// NodeGlobalID is a convenience for resolvers emitting the id field.
func NodeGlobalID(n model.Node) string {
	return ToGlobalID(n.NodeType(), n.NodeID())
}

// ToCursor encodes a stable ordering key into an opaque cursor. The version
// tag keeps decode/encode paired if the key shape ever changes.
func ToCursor(key int64) string {
	raw := cursorPrefix + strconv.FormatInt(key, 10)
	return base64.StdEncoding.EncodeToString([]byte(raw))
}

// FromCursor decodes a client-held cursor back into its ordering key.
func FromCursor(s string) (int64, error) {
	decoded, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return 0, gqlerrors.InvalidCursor(s)
	}
	rawKey, ok := strings.CutPrefix(string(decoded), cursorPrefix)
	if !ok {
		return 0, gqlerrors.InvalidCursor(s)
	}
	key, err := strconv.ParseInt(rawKey, 10, 64)
	if err != nil {
		return 0, gqlerrors.InvalidCursor(s)
	}
	return key, nil
}
