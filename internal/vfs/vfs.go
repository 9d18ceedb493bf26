// Package vfs mounts a zipflow archive's parsed entries as an io/fs.FS
// directory tree, recovering the virtual-filesystem convenience the core
// reader deliberately stays out of.
//
// Nodes live in a flat arena keyed by int id rather than a pointer tree, so
// a node can be detached (an entry dropped from a listing, e.g. after a
// filtered re-scan) without walking parent pointers: Detach just clears the
// arena slot and removes the id from its parent's child slice.
package vfs

import (
	"context"
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"
)

// Opener extracts one entry's content by its full archive path, matching
// the capability zipflow.Reader.Extract already provides.
type Opener interface {
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

// EntryInfo is the subset of zipflow.Entry the tree needs to build nodes,
// kept independent of the root package to avoid an import cycle between
// the library and its peripheral packages.
type EntryInfo struct {
	Name    string
	Size    int64
	Mode    fs.FileMode
	ModTime time.Time
}

const rootID = 0

type node struct {
	name     string
	parent   int
	children []int // ordered by name, as added
	info     EntryInfo
	isDir    bool
	live     bool
}

// Tree is an arena-allocated directory tree built from an archive's entry
// list, exposed as an io/fs.FS.
type Tree struct {
	nodes  []node
	byPath map[string]int
	open   Opener
}

// New builds a Tree from entries, synthesising any intermediate directories
// the entries imply (an archive need not record "dir/" separately for
// "dir/file.txt" to exist).
func New(entries []EntryInfo, open Opener) *Tree {
	t := &Tree{
		nodes:  []node{{name: ".", parent: rootID, isDir: true, live: true}},
		byPath: map[string]int{".": rootID},
		open:   open,
	}
	for _, e := range entries {
		t.add(e)
	}
	return t
}

func (t *Tree) add(e EntryInfo) int {
	clean := strings.Trim(path.Clean("/"+strings.TrimSuffix(e.Name, "/")), "/")
	if clean == "" || clean == "." {
		return rootID
	}
	if id, ok := t.byPath[clean]; ok {
		t.nodes[id].info = e
		t.nodes[id].isDir = t.nodes[id].isDir || strings.HasSuffix(e.Name, "/")
		return id
	}

	dir, base := path.Split(clean)
	parentID := rootID
	if dir != "" {
		parentID = t.ensureDir(strings.TrimSuffix(dir, "/"))
	}

	id := len(t.nodes)
	t.nodes = append(t.nodes, node{
		name:   base,
		parent: parentID,
		info:   e,
		isDir:  strings.HasSuffix(e.Name, "/"),
		live:   true,
	})
	t.byPath[clean] = id
	t.nodes[parentID].children = append(t.nodes[parentID].children, id)
	sort.Slice(t.nodes[parentID].children, func(i, j int) bool {
		return t.nodes[t.nodes[parentID].children[i]].name < t.nodes[t.nodes[parentID].children[j]].name
	})
	return id
}

// ensureDir returns the id of the directory node at clean, creating
// synthetic parent directories as needed.
func (t *Tree) ensureDir(clean string) int {
	if id, ok := t.byPath[clean]; ok {
		t.nodes[id].isDir = true
		return id
	}
	dir, base := path.Split(clean)
	parentID := rootID
	if dir != "" {
		parentID = t.ensureDir(strings.TrimSuffix(dir, "/"))
	}
	id := len(t.nodes)
	t.nodes = append(t.nodes, node{name: base, parent: parentID, isDir: true, live: true})
	t.byPath[clean] = id
	t.nodes[parentID].children = append(t.nodes[parentID].children, id)
	sort.Slice(t.nodes[parentID].children, func(i, j int) bool {
		return t.nodes[t.nodes[parentID].children[i]].name < t.nodes[t.nodes[parentID].children[j]].name
	})
	return id
}

// Detach removes name and its subtree from its parent's listing. The slot
// itself is cleared (not compacted), so any id already handed out becomes
// permanently invalid rather than silently aliasing a different node later.
func (t *Tree) Detach(name string) bool {
	clean := strings.Trim(path.Clean("/"+name), "/")
	id, ok := t.byPath[clean]
	if !ok || id == rootID {
		return false
	}
	parent := t.nodes[id].parent
	siblings := t.nodes[parent].children
	for i, c := range siblings {
		if c == id {
			t.nodes[parent].children = append(siblings[:i], siblings[i+1:]...)
			break
		}
	}
	t.detachSubtree(id)
	return true
}

func (t *Tree) detachSubtree(id int) {
	for _, c := range t.nodes[id].children {
		t.detachSubtree(c)
	}
	delete(t.byPath, t.pathOf(id))
	t.nodes[id] = node{live: false}
}

func (t *Tree) pathOf(id int) string {
	if id == rootID {
		return "."
	}
	n := t.nodes[id]
	if n.parent == rootID {
		return n.name
	}
	return t.pathOf(n.parent) + "/" + n.name
}

// Open implements io/fs.FS.
func (t *Tree) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}
	id, ok := t.byPath[name]
	if !ok || !t.nodes[id].live {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	n := t.nodes[id]
	if n.isDir {
		return &dirHandle{tree: t, id: id}, nil
	}
	return &fileHandle{tree: t, path: name, info: n.info}, nil
}

type treeFileInfo struct {
	name  string
	info  EntryInfo
	isDir bool
}

func (fi treeFileInfo) Name() string { return fi.name }
func (fi treeFileInfo) Size() int64  { return fi.info.Size }

func (fi treeFileInfo) Mode() fs.FileMode {
	mode := fi.info.Mode
	if fi.isDir {
		mode |= fs.ModeDir
	}
	return mode
}

func (fi treeFileInfo) ModTime() time.Time { return fi.info.ModTime }
func (fi treeFileInfo) IsDir() bool        { return fi.isDir }
func (fi treeFileInfo) Sys() any           { return nil }

type dirHandle struct {
	tree   *Tree
	id     int
	offset int
}

func (d *dirHandle) Stat() (fs.FileInfo, error) {
	n := d.tree.nodes[d.id]
	return treeFileInfo{name: n.name, isDir: true}, nil
}
func (d *dirHandle) Read([]byte) (int, error) { return 0, &fs.PathError{Op: "read", Err: fs.ErrInvalid} }
func (d *dirHandle) Close() error             { return nil }

func (d *dirHandle) ReadDir(n int) ([]fs.DirEntry, error) {
	children := d.tree.nodes[d.id].children
	if d.offset >= len(children) {
		if n <= 0 {
			return nil, nil
		}
		return nil, io.EOF
	}
	remaining := children[d.offset:]
	if n > 0 && n < len(remaining) {
		remaining = remaining[:n]
	}
	d.offset += len(remaining)

	out := make([]fs.DirEntry, 0, len(remaining))
	for _, id := range remaining {
		cn := d.tree.nodes[id]
		out = append(out, fs.FileInfoToDirEntry(treeFileInfo{name: cn.name, info: cn.info, isDir: cn.isDir}))
	}
	return out, nil
}

type fileHandle struct {
	tree *Tree
	path string
	info EntryInfo
	rc   io.ReadCloser
}

func (f *fileHandle) Stat() (fs.FileInfo, error) {
	return treeFileInfo{name: path.Base(f.path), info: f.info}, nil
}

func (f *fileHandle) Read(p []byte) (int, error) {
	if f.rc == nil {
		rc, err := f.tree.open.Open(context.Background(), f.path)
		if err != nil {
			return 0, err
		}
		f.rc = rc
	}
	return f.rc.Read(p)
}

func (f *fileHandle) Close() error {
	if f.rc == nil {
		return nil
	}
	return f.rc.Close()
}
