package workspace

import (
	"github.com/artpar/apiary/internal/core"
	"github.com/artpar/apiary/internal/tree"
)

// Copy marks an item to be duplicated by the next paste.
func (s *Store) Copy(id string) bool {
	return s.setClipboard(id, core.ClipboardCopy)
}

// Cut marks an item to be moved by the next paste. The tree is untouched
// until then.
func (s *Store) Cut(id string) bool {
	return s.setClipboard(id, core.ClipboardCut)
}

func (s *Store) setClipboard(id string, mode core.ClipboardMode) bool {
	return s.update("clipboard_"+string(mode), func(st *State) bool {
		item, p := st.Locate(id)
		if item == nil || item == core.Item(p.Root) {
			return false
		}
		if st.Clipboard != nil && st.Clipboard.ItemID == id && st.Clipboard.Mode == mode {
			return false
		}
		st.Clipboard = &core.Clipboard{ItemID: id, Mode: mode}
		return true
	})
}

// ClearClipboard empties the clipboard.
func (s *Store) ClearClipboard() bool {
	return s.update("clipboard_clear", func(st *State) bool {
		if st.Clipboard == nil {
			return false
		}
		st.Clipboard = nil
		return true
	})
}

// Paste consumes the clipboard into targetFolderID. A cut item moves to the
// first position of the target and the slot is cleared, even when the move
// is rejected. A copied item is re-keyed and appended, and the slot is kept
// for further pastes. The pasted item's id is returned; ok is false when
// nothing was placed.
func (s *Store) Paste(targetFolderID string) (string, bool) {
	var pastedID string
	s.update("paste", func(st *State) bool {
		cb := st.Clipboard
		if cb == nil {
			return false
		}
		item, _ := st.Locate(cb.ItemID)
		target, dst := st.Folder(targetFolderID)
		if item == nil || target == nil {
			return false
		}

		if cb.Mode == core.ClipboardCopy {
			var done bool
			pastedID, done = s.engine.InsertCopy(dst.Root, item, target.ID())
			return done
		}

		s.move(st, cb.ItemID, target.ID(), 0)
		if parent := tree.FindParent(dst.Root, cb.ItemID); parent != nil && parent.ID() == target.ID() {
			pastedID = cb.ItemID
		} else {
			s.logger.Debug("cut paste rejected", "item", cb.ItemID, "target", target.ID())
		}
		st.Clipboard = nil
		return true
	})
	return pastedID, pastedID != ""
}
