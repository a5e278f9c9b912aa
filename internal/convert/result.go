// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

// File is one converted output: a file name and its JSON text.
type File struct {
	Name string
	Data []byte
}

// Result maps output file names to JSON text. It keeps the order in which
// names were first produced, so iterating it is deterministic.
type Result struct {
	files []File
	index map[string]int
}

// NewResult builds a Result from files in order. A repeated name replaces
// the earlier entry's data and keeps its position.
func NewResult(files ...File) *Result {
	r := &Result{
		files: make([]File, 0, len(files)),
		index: make(map[string]int, len(files)),
	}
	for _, f := range files {
		r.set(f.Name, f.Data)
	}
	return r
}

// Len returns the number of output files.
func (r *Result) Len() int {
	if r == nil {
		return 0
	}
	return len(r.files)
}

// Files returns the output files in order. The slice is a copy; the data
// buffers are shared and must not be modified.
func (r *Result) Files() []File {
	if r == nil {
		return nil
	}
	out := make([]File, len(r.files))
	copy(out, r.files)
	return out
}

// Names returns the output file names in order.
func (r *Result) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, len(r.files))
	for i, f := range r.files {
		names[i] = f.Name
	}
	return names
}

// Lookup returns the JSON text stored under name.
func (r *Result) Lookup(name string) ([]byte, bool) {
	if r == nil {
		return nil, false
	}
	i, ok := r.index[name]
	if !ok {
		return nil, false
	}
	return r.files[i].Data, true
}

// set stores data under name and reports whether an earlier entry was
// replaced.
func (r *Result) set(name string, data []byte) bool {
	if i, ok := r.index[name]; ok {
		r.files[i].Data = data
		return true
	}
	r.index[name] = len(r.files)
	r.files = append(r.files, File{Name: name, Data: data})
	return false
}
