// Package projectfs provides read-only, bounded access to a project's
// working tree: a depth-limited file listing with ignore rules,
// per-ecosystem dependency detection, and safe relative file reads.
package projectfs

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rohanthewiz/serr"
)

// maxTreeDepth bounds traversal; deeper directories collapse to "..."
const maxTreeDepth = 5

// maxFileReadBytes caps a single relevant-file read
const maxFileReadBytes = 64 * 1024

// Directories never descended into
var ignoredDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	"dist":         true,
	"build":        true,
	"target":       true,
	"__pycache__":  true,
	".venv":        true,
	".idea":        true,
	".vscode":      true,
}

// TreeNode is one entry in the bounded file tree
type TreeNode struct {
	Name     string      `json:"name"`
	Path     string      `json:"path"`
	IsDir    bool        `json:"is_dir"`
	Children []*TreeNode `json:"children,omitempty"`
}

// Structure summarizes a scanned project
type Structure struct {
	Root      *TreeNode `json:"root"`
	FileCount int       `json:"file_count"`
	Languages []string  `json:"languages"`
}

// Dependencies holds detected direct and dev dependencies
type Dependencies struct {
	Direct []string `json:"direct"`
	Dev    []string `json:"dev"`
}

// Scanner reads one project directory
type Scanner struct {
	root string
}

// NewScanner creates a scanner rooted at dir
func NewScanner(dir string) *Scanner {
	return &Scanner{root: dir}
}

// Scan walks the project tree to the depth bound, skipping ignored
// directories, and tallies languages by file extension
func (s *Scanner) Scan() (*Structure, error) {
	info, err := os.Stat(s.root)
	if err != nil {
		return nil, serr.Wrap(err, "failed to stat project root")
	}
	if !info.IsDir() {
		return nil, serr.New("project root is not a directory")
	}

	st := &Structure{}
	langCounts := make(map[string]int)
	st.Root, err = s.walk(s.root, "", 0, st, langCounts)
	if err != nil {
		return nil, err
	}

	type langCount struct {
		lang  string
		count int
	}
	var counts []langCount
	for lang, n := range langCounts {
		counts = append(counts, langCount{lang, n})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].count != counts[j].count {
			return counts[i].count > counts[j].count
		}
		return counts[i].lang < counts[j].lang
	})
	for i, lc := range counts {
		if i >= 5 {
			break
		}
		st.Languages = append(st.Languages, lc.lang)
	}
	return st, nil
}

func (s *Scanner) walk(abs, rel string, depth int, st *Structure, langCounts map[string]int) (*TreeNode, error) {
	name := filepath.Base(abs)
	node := &TreeNode{Name: name, Path: rel, IsDir: true}

	if depth >= maxTreeDepth {
		node.Children = []*TreeNode{{Name: "...", Path: rel, IsDir: false}}
		return node, nil
	}

	entries, err := os.ReadDir(abs)
	if err != nil {
		// unreadable directories are listed but not descended
		return node, nil
	}

	for _, entry := range entries {
		childRel := filepath.Join(rel, entry.Name())
		if entry.IsDir() {
			if ignoredDirs[entry.Name()] || strings.HasPrefix(entry.Name(), ".") {
				continue
			}
			child, err := s.walk(filepath.Join(abs, entry.Name()), childRel, depth+1, st, langCounts)
			if err != nil {
				return nil, err
			}
			node.Children = append(node.Children, child)
		} else {
			st.FileCount++
			if lang := languageOf(entry.Name()); lang != "" {
				langCounts[lang]++
			}
			node.Children = append(node.Children, &TreeNode{
				Name: entry.Name(), Path: childRel,
			})
		}
	}
	return node, nil
}

// ReadFile reads a project file by relative path, rejecting escapes
// above the project root and truncating oversized files
func (s *Scanner) ReadFile(rel string) (string, error) {
	cleaned := filepath.Clean(rel)
	if filepath.IsAbs(cleaned) || strings.HasPrefix(cleaned, "..") {
		return "", serr.New("path escapes project root", "path", rel)
	}

	data, err := os.ReadFile(filepath.Join(s.root, cleaned))
	if err != nil {
		return "", serr.Wrap(err, "failed to read project file", "path", rel)
	}
	if len(data) > maxFileReadBytes {
		data = data[:maxFileReadBytes]
	}
	return string(data), nil
}

// DetectDependencies runs each ecosystem detector independently.
// A detector that finds nothing, or fails to parse, contributes nothing.
func (s *Scanner) DetectDependencies() *Dependencies {
	deps := &Dependencies{Direct: []string{}, Dev: []string{}}
	s.detectGoMod(deps)
	s.detectPackageJSON(deps)
	s.detectRequirements(deps)
	return deps
}

func (s *Scanner) detectGoMod(deps *Dependencies) {
	f, err := os.Open(filepath.Join(s.root, "go.mod"))
	if err != nil {
		return
	}
	defer f.Close()

	inRequire := false
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, "require ("):
			inRequire = true
		case inRequire && line == ")":
			inRequire = false
		case inRequire || strings.HasPrefix(line, "require "):
			fields := strings.Fields(strings.TrimPrefix(line, "require "))
			if len(fields) >= 2 && !strings.HasPrefix(fields[0], "//") {
				if len(fields) >= 4 && fields[2] == "//" && fields[3] == "indirect" {
					continue
				}
				deps.Direct = append(deps.Direct, fields[0])
			}
		}
	}
}

func (s *Scanner) detectPackageJSON(deps *Dependencies) {
	data, err := os.ReadFile(filepath.Join(s.root, "package.json"))
	if err != nil {
		return
	}
	var manifest struct {
		Dependencies    map[string]string `json:"dependencies"`
		DevDependencies map[string]string `json:"devDependencies"`
	}
	if err := json.Unmarshal(data, &manifest); err != nil {
		return
	}
	for name, version := range manifest.Dependencies {
		deps.Direct = append(deps.Direct, fmt.Sprintf("%s@%s", name, version))
	}
	for name, version := range manifest.DevDependencies {
		deps.Dev = append(deps.Dev, fmt.Sprintf("%s@%s", name, version))
	}
	sort.Strings(deps.Direct)
	sort.Strings(deps.Dev)
}

func (s *Scanner) detectRequirements(deps *Dependencies) {
	f, err := os.Open(filepath.Join(s.root, "requirements.txt"))
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "-") {
			continue
		}
		deps.Direct = append(deps.Direct, line)
	}
}

func languageOf(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".go":
		return "Go"
	case ".js", ".jsx":
		return "JavaScript"
	case ".ts", ".tsx":
		return "TypeScript"
	case ".py":
		return "Python"
	case ".rb":
		return "Ruby"
	case ".rs":
		return "Rust"
	case ".java":
		return "Java"
	case ".c", ".h":
		return "C"
	case ".cpp", ".cc", ".hpp":
		return "C++"
	case ".sql":
		return "SQL"
	case ".sh":
		return "Shell"
	default:
		return ""
	}
}

// FormatTree renders a structure as an indented listing for prompts
func FormatTree(node *TreeNode) string {
	var b strings.Builder
	formatTree(&b, node, 0)
	return b.String()
}

func formatTree(b *strings.Builder, node *TreeNode, depth int) {
	b.WriteString(strings.Repeat("  ", depth))
	b.WriteString(node.Name)
	if node.IsDir {
		b.WriteString("/")
	}
	b.WriteString("\n")
	for _, child := range node.Children {
		formatTree(b, child, depth+1)
	}
}
