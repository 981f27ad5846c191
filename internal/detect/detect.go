// internal/detect/detect.go

// Package detect identifies which store locator platform a page embeds and
// the platform instance identifier it is configured with.
package detect

import (
	"context"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/valpere/BrandLocator/internal/scraper"
	"github.com/valpere/BrandLocator/internal/utils"
	"github.com/valpere/BrandLocator/pkg/types"
)

// Document is page markup with a lazily parsed DOM.
type Document struct {
	URL    string
	Markup string

	dom    *goquery.Document
	parsed bool
}

// NewDocument wraps markup fetched from url.
func NewDocument(url, markup string) *Document {
	return &Document{URL: url, Markup: markup}
}

// DOM returns the parsed document, or nil when the markup is not parseable.
func (d *Document) DOM() *goquery.Document {
	if !d.parsed {
		d.parsed = true
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(d.Markup))
		if err == nil {
			d.dom = doc
		}
	}
	return d.dom
}

// Rule is one detection pattern. Match returns the instance identifier, or
// "" when the rule does not apply.
type Rule struct {
	Name     string
	Platform types.Platform
	Match    func(doc *Document) string
}

// Detector applies an ordered rule list and returns the first match.
type Detector struct {
	rules    []Rule
	urlRules []urlRule
	logger   utils.Logger
}

// New returns a detector with the built-in rules.
func New(logger utils.Logger) *Detector {
	return NewWithRules(DefaultRules(), logger)
}

// NewWithRules returns a detector using rules in the given order.
func NewWithRules(rules []Rule, logger utils.Logger) *Detector {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &Detector{
		rules:    rules,
		urlRules: defaultURLRules(),
		logger:   logger,
	}
}

// Rules returns the rule list in evaluation order.
func (d *Detector) Rules() []Rule {
	out := make([]Rule, len(d.rules))
	copy(out, d.rules)
	return out
}

// Detect inspects markup. An undetected page yields a source with the
// browser-fallback strategy and no instance id; that is not an error.
func (d *Detector) Detect(pageURL, markup string) types.StoreLocatorSource {
	doc := NewDocument(pageURL, markup)
	for _, rule := range d.rules {
		id := rule.Match(doc)
		if id == "" {
			continue
		}
		d.logger.WithFields(map[string]interface{}{
			"rule":        rule.Name,
			"platform":    string(rule.Platform),
			"instance_id": id,
		}).Info("store locator detected")
		return types.StoreLocatorSource{
			URL:        pageURL,
			Platform:   rule.Platform,
			Strategy:   rule.Platform.Strategy(),
			InstanceID: id,
			Rule:       rule.Name,
		}
	}

	d.logger.WithField("url", pageURL).Info("no store locator platform detected")
	return types.StoreLocatorSource{
		URL:      pageURL,
		Strategy: types.StrategyBrowserFallback,
	}
}

// DetectPage fetches pageURL and detects its platform. The markup is returned
// for callers that want to reuse it. Only fetch failures are errors.
func (d *Detector) DetectPage(ctx context.Context, f scraper.Fetcher, pageURL string) (types.StoreLocatorSource, string, error) {
	body, err := f.Get(ctx, pageURL, nil)
	if err != nil {
		return types.StoreLocatorSource{URL: pageURL, Strategy: types.StrategyBrowserFallback}, "", err
	}
	markup := string(body)
	return d.Detect(pageURL, markup), markup, nil
}

// DetectURL runs the platform API URL patterns against a network request URL
// captured by the browser. It recovers an instance id the page markup hid.
func (d *Detector) DetectURL(requestURL string) (types.StoreLocatorSource, bool) {
	for _, r := range d.urlRules {
		m := r.pattern.FindStringSubmatch(requestURL)
		if m == nil {
			continue
		}
		id := r.normalize(m[1])
		return types.StoreLocatorSource{
			URL:        requestURL,
			Platform:   r.platform,
			Strategy:   r.platform.Strategy(),
			InstanceID: id,
			Rule:       r.name,
		}, true
	}
	return types.StoreLocatorSource{}, false
}

var (
	stockistAPIPath    = regexp.MustCompile(`(?i)stockist\.co/api/v1/(u\d+)`)
	stockistTagParam   = regexp.MustCompile(`(?i)tag=(u\d+)`)
	stockistDataAttr   = regexp.MustCompile(`(?i)data-stockist[^>]*["']?(u\d+)["']?`)
	stockistInit       = regexp.MustCompile(`(?i)Stockist\.init\(["']?(u\d+)`)
	stockistProximity  = regexp.MustCompile(`(?i)stockist[^u]{0,100}(u\d+)`)
	storeRocketAttr    = regexp.MustCompile(`(?i)data-storerocket-id=['"]([a-zA-Z0-9_-]+)['"]`)
	storeRocketIDShape = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	storePointMapID    = regexp.MustCompile(`data-map-id="([^"]+)"`)
	storemapperDataID  = regexp.MustCompile(`data-id="(\d+)"`)
)

// DefaultRules returns the built-in rules ordered from most to least
// specific. Exact API paths and dedicated attributes come before the loose
// proximity pattern, which can match unrelated text near the word stockist.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:     "stockist-api-path",
			Platform: types.PlatformStockist,
			Match:    regexRule(stockistAPIPath, strings.ToLower),
		},
		{
			Name:     "storerocket-attribute",
			Platform: types.PlatformStoreRocket,
			Match: func(doc *Document) string {
				if dom := doc.DOM(); dom != nil {
					if id, ok := dom.Find("[data-storerocket-id]").First().Attr("data-storerocket-id"); ok {
						id = strings.TrimSpace(id)
						if storeRocketIDShape.MatchString(id) {
							return id
						}
					}
				}
				return regexRule(storeRocketAttr, nil)(doc)
			},
		},
		{
			Name:     "storepoint-map-id",
			Platform: types.PlatformStorePoint,
			Match: func(doc *Document) string {
				if dom := doc.DOM(); dom != nil {
					if id, ok := dom.Find("[data-map-id]").First().Attr("data-map-id"); ok && strings.TrimSpace(id) != "" {
						return strings.TrimSpace(id)
					}
				}
				return regexRule(storePointMapID, nil)(doc)
			},
		},
		{
			Name:     "stockist-tag-param",
			Platform: types.PlatformStockist,
			Match:    regexRule(stockistTagParam, strings.ToLower),
		},
		{
			Name:     "stockist-data-attribute",
			Platform: types.PlatformStockist,
			Match:    regexRule(stockistDataAttr, strings.ToLower),
		},
		{
			Name:     "stockist-init-call",
			Platform: types.PlatformStockist,
			Match:    regexRule(stockistInit, strings.ToLower),
		},
		{
			// data-id is generic markup; it only counts on pages that load storemapper.
			Name:     "storemapper-data-id",
			Platform: types.PlatformStoremapper,
			Match: func(doc *Document) string {
				if !strings.Contains(strings.ToLower(doc.Markup), "storemapper") {
					return ""
				}
				return regexRule(storemapperDataID, nil)(doc)
			},
		},
		{
			Name:     "stockist-proximity",
			Platform: types.PlatformStockist,
			Match:    regexRule(stockistProximity, strings.ToLower),
		},
	}
}

func regexRule(re *regexp.Regexp, normalize func(string) string) func(*Document) string {
	return func(doc *Document) string {
		m := re.FindStringSubmatch(doc.Markup)
		if m == nil {
			return ""
		}
		if normalize != nil {
			return normalize(m[1])
		}
		return m[1]
	}
}

type urlRule struct {
	name      string
	platform  types.Platform
	pattern   *regexp.Regexp
	normalize func(string) string
}

func identity(s string) string { return s }

func defaultURLRules() []urlRule {
	return []urlRule{
		{"stockist-api-url", types.PlatformStockist, stockistAPIPath, strings.ToLower},
		{"stockist-tag-url", types.PlatformStockist, regexp.MustCompile(`(?i)stockist\.co/[^?#]*\?(?:[^#]*&)?tag=(u\d+)`), strings.ToLower},
		{"storerocket-api-url", types.PlatformStoreRocket, regexp.MustCompile(`(?i)storerocket\.io/api/user/([a-zA-Z0-9_-]+)`), identity},
		{"storepoint-api-url", types.PlatformStorePoint, regexp.MustCompile(`(?i)storepoint\.co/[^?#]*\?(?:[^#]*&)?storepoint_id=([^&#]+)`), identity},
		{"storemapper-api-url", types.PlatformStoremapper, regexp.MustCompile(`(?i)storemapper\.co/[^?#]*\?(?:[^#]*&)?storemapper_id=(\d+)`), identity},
	}
}
