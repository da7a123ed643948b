// Package emit renders the generated page module for a compiled document.
package emit

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"text/template"

	derrors "git.home.luguber.info/inful/mdocpack/internal/foundation/errors"
)

// Mode selects the data-fetching entry point of the module.
type Mode string

const (
	ModeStatic Mode = "static"
	ModeServer Mode = "server"
)

// ParseMode validates a mode name. The empty string selects ModeStatic.
// Unknown names yield ModeStatic together with the error, matching how a
// module treats any mode other than server.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeStatic:
		return ModeStatic, nil
	case ModeServer:
		return ModeServer, nil
	}
	return ModeStatic, derrors.ConfigError(fmt.Sprintf("invalid mode %q: expected %q or %q", s, ModeStatic, ModeServer)).Build()
}

// DataFunction returns the exported data-fetching function name for m.
func (m Mode) DataFunction() string {
	if m == ModeServer {
		return "getServerSideProps"
	}
	return "getStaticProps"
}

// Router selects the module shape for the framework's two routing systems.
type Router string

const (
	RouterPages Router = "pages"
	RouterApp   Router = "app"
)

// DefaultRuntimeModule provides getSchema to generated modules.
const DefaultRuntimeModule = "@markdoc/next.js/runtime"

// Input is everything the emitter needs for one document.
type Input struct {
	Source       string
	ResourcePath string
	Partials     map[string]string
	// SchemaCode is the schema-assembly block defining `schema`.
	SchemaCode    string
	Mode          Mode
	Router        Router
	RuntimeModule string
}

//go:embed templates/*.js.tmpl
var templateFS embed.FS

var templates = map[Router]*template.Template{
	RouterPages: mustTemplate(RouterPages),
	RouterApp:   mustTemplate(RouterApp),
}

func mustTemplate(r Router) *template.Template {
	return template.Must(template.New("").Option("missingkey=error").ParseFS(templateFS,
		"templates/module.js.tmpl",
		fmt.Sprintf("templates/%s.js.tmpl", r),
	))
}

type moduleData struct {
	RuntimeModule string
	SchemaCode    string
	Source        string
	FilePath      string
	Partials      string
	DataFunction  string
}

// Emit renders the module text. All embedded values are JSON-encoded.
func Emit(in Input) (string, error) {
	// anything other than server is static
	mode, _ := ParseMode(string(in.Mode))
	router := in.Router
	if router == "" {
		router = RouterPages
	}
	tpl, ok := templates[router]
	if !ok {
		return "", derrors.ConfigError(fmt.Sprintf("unknown router %q", router)).Build()
	}

	runtime := in.RuntimeModule
	if runtime == "" {
		runtime = DefaultRuntimeModule
	}
	schemaCode := in.SchemaCode
	if strings.TrimSpace(schemaCode) == "" {
		schemaCode = "const schema = {};"
	}
	partials := in.Partials
	if partials == nil {
		partials = map[string]string{}
	}

	data := moduleData{
		RuntimeModule: jsString(runtime),
		SchemaCode:    schemaCode,
		Source:        jsString(in.Source),
		FilePath:      "undefined",
		DataFunction:  mode.DataFunction(),
	}
	if p, ok := PagePath(in.ResourcePath); ok {
		data.FilePath = jsString(p)
	}
	raw, err := json.Marshal(partials)
	if err != nil {
		return "", derrors.WrapError(err, derrors.CategoryInternal, "encode partials").Fatal().Build()
	}
	data.Partials = string(raw)

	var buf bytes.Buffer
	if err := tpl.ExecuteTemplate(&buf, "module", data); err != nil {
		return "", derrors.WrapError(err, derrors.CategoryInternal, "render module template").Fatal().Build()
	}
	return buf.String(), nil
}

// PagePath returns the part of resourcePath after the first "pages"
// directory segment, keeping the leading slash.
func PagePath(resourcePath string) (string, bool) {
	p := filepath.ToSlash(resourcePath)
	if strings.HasPrefix(p, "pages/") {
		return p[len("pages"):], true
	}
	i := strings.Index(p, "/pages/")
	if i < 0 {
		return "", false
	}
	return p[i+len("/pages"):], true
}

func jsString(s string) string {
	out, _ := json.Marshal(s)
	return string(out)
}
