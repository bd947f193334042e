package mcpclient

import (
	"encoding/base64"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Content block types produced by tool calls. The set is open: servers
// may emit types this package has never heard of, and consumers must
// render those generically rather than reject them.
const (
	BlockText     = "text"
	BlockJSON     = "json"
	BlockImage    = "image"
	BlockResource = "resource"
)

// ContentBlock is one typed unit of tool output. Data holds the
// payload in a type-dependent shape: a string for text and image
// blocks, arbitrary structured data for json and resource blocks.
type ContentBlock struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// TextBlock wraps a string as a text content block.
func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockText, Data: text}
}

// JSONBlock wraps structured data as a json content block.
func JSONBlock(data any) ContentBlock {
	return ContentBlock{Type: BlockJSON, Data: data}
}

// decodeContent converts SDK content items into blocks. Text comes
// through verbatim, images as base64, embedded resources as their
// descriptor. Unknown item kinds degrade to stringified text rather
// than dropping tool output on the floor.
func decodeContent(items []mcp.Content) []ContentBlock {
	blocks := make([]ContentBlock, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case *mcp.TextContent:
			blocks = append(blocks, TextBlock(v.Text))
		case *mcp.ImageContent:
			blocks = append(blocks, ContentBlock{
				Type: BlockImage,
				Data: base64.StdEncoding.EncodeToString(v.Data),
			})
		case *mcp.EmbeddedResource:
			data := map[string]any{}
			if v.Resource != nil {
				data["uri"] = v.Resource.URI
				data["mimeType"] = v.Resource.MIMEType
			}
			blocks = append(blocks, ContentBlock{Type: BlockResource, Data: data})
		default:
			blocks = append(blocks, TextBlock(fmt.Sprintf("%v", item)))
		}
	}
	return blocks
}
