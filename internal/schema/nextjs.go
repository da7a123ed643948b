package schema

import "git.home.luguber.info/inful/mdocpack/internal/markdoc"

var tagSets = map[string]map[string]*markdoc.Schema{
	"nextjs": NextjsTags(),
}

// NextjsTags returns the tag set mirroring the framework's built-in
// components: comment, head, image, link and script.
func NextjsTags() map[string]*markdoc.Schema {
	str := func(required bool) *markdoc.Attribute {
		return &markdoc.Attribute{Type: markdoc.AttrString, Required: required}
	}
	num := func(required bool) *markdoc.Attribute {
		return &markdoc.Attribute{Type: markdoc.AttrNumber, Required: required}
	}
	flag := func(def any) *markdoc.Attribute {
		return &markdoc.Attribute{Type: markdoc.AttrBoolean, Default: def}
	}

	return map[string]*markdoc.Schema{
		"comment": {
			Description: "Use to comment the content itself",
			Attributes:  map[string]*markdoc.Attribute{},
			Transform: func(*markdoc.Node, *markdoc.Config) (any, error) {
				return []any{}, nil
			},
		},
		"head": {
			Render:      "Head",
			Description: "Renders a Next.js head tag",
			Attributes:  map[string]*markdoc.Attribute{},
		},
		"image": {
			Render:      "Image",
			Description: "Renders a Next.js image tag",
			Attributes: map[string]*markdoc.Attribute{
				"src":         str(true),
				"alt":         str(true),
				"width":       num(true),
				"height":      num(true),
				"fill":        flag(nil),
				"sizes":       str(false),
				"quality":     num(false),
				"priority":    flag(nil),
				"placeholder": {Type: markdoc.AttrString, Matches: []any{"blur", "empty"}},
				"loading":     {Type: markdoc.AttrString, Matches: []any{"lazy", "eager"}},
				"blurDataURL": str(false),
			},
		},
		"link": {
			Render:      "Link",
			Description: "Displays a Next.js link",
			Attributes: map[string]*markdoc.Attribute{
				"href":     {Type: markdoc.AttrString, Required: true, ErrorLevel: markdoc.LevelCritical},
				"as":       str(false),
				"passHref": flag(false),
				"prefetch": flag(nil),
				"replace":  flag(false),
				"scroll":   flag(true),
				"shallow":  flag(true),
				"locale":   flag(nil),
			},
		},
		"script": {
			Render:      "Script",
			Description: "Renders a Next.js script tag",
			Attributes: map[string]*markdoc.Attribute{
				"src":      {Type: markdoc.AttrString, Required: true, ErrorLevel: markdoc.LevelCritical},
				"strategy": {Type: markdoc.AttrString, Matches: []any{"beforeInteractive", "afterInteractive", "lazyOnload"}},
			},
		},
	}
}
