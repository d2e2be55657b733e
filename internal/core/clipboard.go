package core

// ClipboardMode distinguishes a pending cut from a copy.
type ClipboardMode string

const (
	ClipboardCut  ClipboardMode = "cut"
	ClipboardCopy ClipboardMode = "copy"
)

// Clipboard is the single slot holding an item marked for paste.
type Clipboard struct {
	ItemID string        `json:"item_id" yaml:"item_id"`
	Mode   ClipboardMode `json:"mode" yaml:"mode"`
}
