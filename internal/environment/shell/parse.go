package shell

import (
	"sort"
	"strings"

	"github.com/slok/envctl/internal/model"
)

// SplitLines returns the non blank lines of s.
func SplitLines(s string) []string {
	var lines []string
	for _, l := range strings.Split(s, "\n") {
		if strings.TrimSpace(l) == "" {
			continue
		}
		lines = append(lines, strings.TrimRight(l, "\r"))
	}
	return lines
}

// ParseLs parses `ls -1ap` output, entries are ordered by name.
func ParseLs(out string) []model.FileEntry {
	var entries []model.FileEntry
	for _, l := range SplitLines(out) {
		l = strings.TrimSpace(l)
		switch l {
		case ".", "..", "./", "../":
			continue
		}

		if strings.HasSuffix(l, "/") {
			entries = append(entries, model.FileEntry{Name: strings.TrimRight(l, "/"), Type: model.EntryTypeDir})
			continue
		}
		entries = append(entries, model.FileEntry{Name: l, Type: model.EntryTypeFile})
	}

	sortEntries(entries)
	return entries
}

// ParseFind parses `find` output naming the entries relative to root, dirs is
// the output of the same find restricted to directories.
func ParseFind(out, dirs, root string) []model.FileEntry {
	dirSet := map[string]struct{}{}
	for _, d := range SplitLines(dirs) {
		dirSet[strings.TrimSpace(d)] = struct{}{}
	}

	prefix := strings.TrimRight(root, "/") + "/"
	var entries []model.FileEntry
	for _, l := range SplitLines(out) {
		l = strings.TrimSpace(l)

		e := model.FileEntry{Name: strings.TrimPrefix(l, prefix), Type: model.EntryTypeFile}
		if _, ok := dirSet[l]; ok {
			e.Type = model.EntryTypeDir
		}
		entries = append(entries, e)
	}

	sortEntries(entries)
	return entries
}

func sortEntries(entries []model.FileEntry) {
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
}
