package completion

import (
	"embed"
	"fmt"
	"io/fs"
	"sync"

	"github.com/flosch/pongo2/v6"
)

//go:embed prompts/*.tpl
var promptFS embed.FS

var (
	promptSetOnce sync.Once
	promptSet     *pongo2.TemplateSet
	promptSetErr  error
)

func prompts() (*pongo2.TemplateSet, error) {
	promptSetOnce.Do(func() {
		sub, err := fs.Sub(promptFS, "prompts")
		if err != nil {
			promptSetErr = fmt.Errorf("completion: prompt templates: %w", err)
			return
		}
		promptSet = pongo2.NewSet("docfill-prompts", pongo2.NewFSLoader(sub))
	})
	return promptSet, promptSetErr
}

// renderPrompt executes an embedded prompt template with the given context.
func renderPrompt(name string, data pongo2.Context) (string, error) {
	set, err := prompts()
	if err != nil {
		return "", err
	}
	tmpl, err := set.FromCache(name)
	if err != nil {
		return "", fmt.Errorf("completion: load prompt %q: %w", name, err)
	}
	out, err := tmpl.Execute(data)
	if err != nil {
		return "", fmt.Errorf("completion: render prompt %q: %w", name, err)
	}
	return out, nil
}
