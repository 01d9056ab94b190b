package api

import (
	"io/fs"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/beevik/etree"

	"forgeworks/macrod/internal/render"
	"forgeworks/macrod/pkg/macro"
)

type toolInfo struct {
	Path string `json:"path"`
}

// handleListTools walks the tool root and lists every XML document.
func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	var tools []toolInfo
	err := filepath.WalkDir(s.cfg.ToolRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".xml") {
			return nil
		}
		rel, err := filepath.Rel(s.cfg.ToolRoot, path)
		if err != nil {
			return err
		}
		tools = append(tools, toolInfo{Path: filepath.ToSlash(rel)})
		return nil
	})
	if err != nil {
		s.log.Error("listing tools", "error", err)
		jsonError(w, http.StatusInternalServerError, "listing tools failed")
		return
	}
	if tools == nil {
		tools = []toolInfo{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tools": tools,
		"count": len(tools),
	})
}

type expandResponse struct {
	Path           string            `json:"path"`
	Cached         bool              `json:"cached"`
	XML            string            `json:"xml"`
	ImportPaths    []string          `json:"import_paths"`
	TemplateParams map[string]string `json:"template_params"`
}

// handleExpandTool expands one document and returns the result.
func (s *Server) handleExpandTool(w http.ResponseWriter, r *http.Request) {
	rel := r.URL.Query().Get("path")
	entry, cached, err := s.expander.Expand(rel)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	imports := entry.ImportPaths
	if imports == nil {
		imports = []string{}
	}
	writeJSON(w, http.StatusOK, expandResponse{
		Path:           rel,
		Cached:         cached,
		XML:            entry.XML,
		ImportPaths:    imports,
		TemplateParams: entry.TemplateParams,
	})
}

// handleLintTool reports macro hygiene issues without expanding.
func (s *Server) handleLintTool(w http.ResponseWriter, r *http.Request) {
	abs, err := s.expander.Resolve(r.URL.Query().Get("path"))
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	doc, err := macro.RawTree(abs)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	root := doc.Root()
	if root == nil {
		jsonError(w, http.StatusBadRequest, "document has no root element")
		return
	}
	issues := macro.Lint(root)
	if issues == nil {
		issues = []macro.Issue{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"path":   r.URL.Query().Get("path"),
		"issues": issues,
		"count":  len(issues),
	})
}

// handleToolHelp extracts a tool's help section from the expanded
// document and renders it as markdown, HTML or plain text.
func (s *Server) handleToolHelp(w http.ResponseWriter, r *http.Request) {
	entry, _, err := s.expander.Expand(r.URL.Query().Get("path"))
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromString(entry.XML); err != nil {
		s.log.Error("re-parsing expanded document", "error", err)
		jsonError(w, http.StatusInternalServerError, "rendering help failed")
		return
	}
	help := render.HelpText(doc.Root())
	if help == "" {
		jsonError(w, http.StatusNotFound, "tool has no help section")
		return
	}

	switch r.URL.Query().Get("format") {
	case "html":
		body, err := render.HTML(help)
		if err != nil {
			s.log.Error("rendering help", "error", err)
			jsonError(w, http.StatusInternalServerError, "rendering help failed")
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(body))
	case "text":
		text, err := render.Text(help)
		if err != nil {
			s.log.Error("rendering help", "error", err)
			jsonError(w, http.StatusInternalServerError, "rendering help failed")
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(text))
	default:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(help))
	}
}
