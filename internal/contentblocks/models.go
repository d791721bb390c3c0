package contentblocks

import (
	"cmp"
	"slices"
	"strings"
)

// Block types rendered from the message's pre-formatted body.
const (
	TypeText = "text"
	TypeUL   = "ul"
	TypeOL   = "ol"
)

// Media block types whose content is the resolved media URL.
const (
	TypeImage = "image"
	TypeAudio = "audio"
	TypeVideo = "video"
	TypeFile  = "file"
)

// ContentBlock is one rendered unit of a project's content in one language.
type ContentBlock struct {
	BlockID          string `json:"blockId"`
	Type             string `json:"type"`
	RoomID           string `json:"roomId"`
	Content          string `json:"content"`
	FormattedContent string `json:"formatted_content"`
	// Err is set when the block could not be rendered. FormattedContent is
	// empty in that case.
	Err error `json:"-"`
}

// Failed reports whether the block carries a rendering error.
func (b ContentBlock) Failed() bool {
	return b.Err != nil
}

// SortBlocks orders blocks by block id, then room id.
func SortBlocks(blocks []ContentBlock) {
	slices.SortStableFunc(blocks, func(a, b ContentBlock) int {
		if c := cmp.Compare(a.BlockID, b.BlockID); c != 0 {
			return c
		}
		return cmp.Compare(a.RoomID, b.RoomID)
	})
}

// Compose merges blocks into the blockId keyed view and the concatenated
// HTML document. The first block in sorted order wins a duplicated blockId;
// failed blocks contribute no markup.
func Compose(blocks []ContentBlock) (map[string]ContentBlock, string) {
	sorted := slices.Clone(blocks)
	SortBlocks(sorted)

	content := make(map[string]ContentBlock, len(sorted))
	var formatted []byte
	for _, block := range sorted {
		if _, exists := content[block.BlockID]; !exists {
			content[block.BlockID] = block
		}
		if block.Failed() {
			continue
		}
		formatted = append(formatted, block.FormattedContent...)
	}
	return content, string(formatted)
}

// ParseRoomName splits a content-block room name on the first underscore.
func ParseRoomName(name string) (blockID, blockType string, ok bool) {
	return strings.Cut(name, "_")
}
