package extract

import "github.com/searchwise/search-gateway/config"

// Schema describes how to pull results out of one upstream engine's HTML and
// where the summary widget anchors into the page.
type Schema struct {
	Name string

	// Result card selectors.
	Container string
	Title     string
	Link      string
	Snippet   string
	Date      string

	// Anchor is the first element the summary widget is prepended into.
	Anchor string

	// Query plumbing.
	QueryParam        string // search query parameter the engine expects
	SearchPath        string // path of the engine's HTML search endpoint
	AutocompletePath  string // path of the engine's suggestion endpoint
	AutocompleteParam string
}

var SearXNG = Schema{
	Name:              config.EngineSearXNG,
	Container:         ".result",
	Title:             "h3 a",
	Link:              "h3 a",
	Snippet:           ".content",
	Date:              ".published_date",
	Anchor:            "#urls",
	QueryParam:        "q",
	SearchPath:        "/search",
	AutocompletePath:  "/autocompleter",
	AutocompleteParam: "q",
}

var FourGet = Schema{
	Name:              config.Engine4get,
	Container:         ".text-result",
	Title:             ".title",
	Link:              "a.hover",
	Snippet:           ".description",
	Date:              ".date",
	Anchor:            ".left",
	QueryParam:        "s",
	SearchPath:        "/web",
	AutocompletePath:  "/api/v1/ac",
	AutocompleteParam: "s",
}

// ForEngine returns the schema for a configured engine name.
func ForEngine(name string) Schema {
	if name == config.Engine4get {
		return FourGet
	}
	return SearXNG
}
