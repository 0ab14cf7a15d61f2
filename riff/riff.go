// Package riff parses tagged, length-prefixed chunk containers of the
// kind used by RIFF-family formats. Container chunks (RIFF, LIST) carry a
// four-byte form type and a body of child chunks; leaf chunks carry raw
// data. Sizes are little-endian and siblings are padded to even offsets.
package riff

import (
	"encoding/binary"

	"go-sfplayer/errs"
)

// Node is one parsed chunk. Containers hold their children in Kids keyed
// by tag (leaves) or form type (sub-containers); leaves hold the offset
// and size of their data within the original buffer.
type Node struct {
	Tag  string
	Form string // form type; empty for leaves
	Off  int    // data offset into the parsed buffer (leaves)
	Size int    // declared data size in bytes (leaves)
	Kids Dir    // children; nil for leaves

	data []byte
}

// Dir maps chunk tags (and container form types) to parsed nodes.
type Dir map[string]*Node

// Data returns the leaf's bytes. Containers return nil.
func (n *Node) Data() []byte {
	if n == nil || n.Kids != nil {
		return nil
	}
	return n.data[n.Off : n.Off+n.Size]
}

// Leaf looks up a leaf chunk by tag.
func (d Dir) Leaf(tag string) (*Node, bool) {
	n, ok := d[tag]
	if !ok || n.Kids != nil {
		return nil, false
	}
	return n, true
}

// Sub looks up a sub-container by its form type and returns its children.
func (d Dir) Sub(form string) (Dir, bool) {
	n, ok := d[form]
	if !ok || n.Kids == nil {
		return nil, false
	}
	return n.Kids, true
}

func isContainer(tag string) bool {
	return tag == "RIFF" || tag == "LIST"
}

func tagOK(tag []byte) bool {
	for _, c := range tag {
		if c < 0x20 || c > 0x7e {
			return false
		}
	}
	return true
}

// Parse walks the chunk stream in data[off:end] and returns the directory
// of sibling chunks found there, recursing into containers. Each chunk
// consumes exactly 8+size bytes plus one pad byte when size is odd.
func Parse(data []byte, off, end int) (Dir, error) {
	if end > len(data) {
		return nil, errs.Bounds("chunk stream", end, len(data))
	}
	dir := make(Dir)
	for off < end {
		if off+8 > end {
			return nil, errs.Bounds("chunk header", 8, end-off)
		}
		tag := data[off : off+4]
		if !tagOK(tag) {
			return nil, errs.Formatf("chunk", "invalid tag bytes % x at offset %d", tag, off)
		}
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		if body+size > end {
			return nil, errs.Bounds(string(tag), size, end-body)
		}
		if isContainer(string(tag)) {
			if size < 4 {
				return nil, errs.Formatf(string(tag), "container size %d too small for form type", size)
			}
			form := data[body : body+4]
			if !tagOK(form) {
				return nil, errs.Formatf(string(tag), "invalid form type % x", form)
			}
			kids, err := Parse(data, body+4, body+size)
			if err != nil {
				return nil, err
			}
			dir[string(form)] = &Node{
				Tag:  string(tag),
				Form: string(form),
				Kids: kids,
				data: data,
			}
		} else {
			dir[string(tag)] = &Node{
				Tag:  string(tag),
				Off:  body,
				Size: size,
				data: data,
			}
		}
		off = body + size
		if size%2 == 1 {
			off++ // pad byte between siblings
		}
	}
	return dir, nil
}
