package dialog

// Provenance tags for dialog content. Internal only; never shown to the player.
const (
	SourceAuthored  = "authored"
	SourceGenerated = "generated"
	SourceStation   = "station"
)

// Node is a single beat of conversation: one speaker, one body of text,
// and the options the player may choose from. Nodes within a room form a
// directed graph keyed by node ID; cycles are legal content.
type Node struct {
	ID      string   `json:"id"`
	Speaker string   `json:"speaker"`
	Source  string   `json:"source,omitempty"`
	Text    string   `json:"text"`
	Options []Option `json:"options,omitempty"`
}

// Option is a player-facing choice within a node. If Next is empty the
// option ends the dialog. SetFlag and GiveItem are optional side effects
// applied when the option is chosen.
type Option struct {
	Text     string `json:"text"`
	Source   string `json:"source,omitempty"`
	Next     string `json:"next,omitempty"`
	End      bool   `json:"end,omitempty"`
	SetFlag  string `json:"set_flag,omitempty"`
	GiveItem string `json:"give_item,omitempty"`
}

// IsTerminal reports whether choosing this option ends the dialog.
func (o Option) IsTerminal() bool {
	return o.End || o.Next == ""
}

// ResolvedNode is a fully inlined dialog tree. The presentation layer
// renders it without any further node lookups.
type ResolvedNode struct {
	ID      string           `json:"id"`
	Speaker string           `json:"speaker"`
	Text    string           `json:"text"`
	Options []ResolvedOption `json:"options,omitempty"`
}

// ResolvedOption is an option with its next-reference inlined. A nil Next
// means the option is terminal, either by content or because resolution
// cut a cycle at this point.
type ResolvedOption struct {
	Text     string        `json:"text"`
	SetFlag  string        `json:"set_flag,omitempty"`
	GiveItem string        `json:"give_item,omitempty"`
	Next     *ResolvedNode `json:"next,omitempty"`
}
