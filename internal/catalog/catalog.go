// Package catalog serves pre-vetted static images per category, used when an
// article has no usable generated image.
package catalog

import (
	"math/rand"
	"net/url"
	"regexp"
	"strings"
	"sync"
)

const defaultKey = "world"

var images = map[string][]string{
	"world": {
		"https://images.unsplash.com/photo-1529107386315-e1a2ed48bc6a?w=800&h=400&fit=crop",
		"https://images.unsplash.com/photo-1526470608268-f674ce90efd4?w=800&h=400&fit=crop",
		"https://images.unsplash.com/photo-1541872703-74c5e44368f9?w=800&h=400&fit=crop",
		"https://images.unsplash.com/photo-1451187580459-43490279c0fa?w=800&h=400&fit=crop",
		"https://images.unsplash.com/photo-1557804506-669a67965ba0?w=800&h=400&fit=crop",
	},
	"india": {
		"https://images.unsplash.com/photo-1524492412937-b28074a5d7da?w=800&h=400&fit=crop",
		"https://images.unsplash.com/photo-1587474260584-136574528ed5?w=800&h=400&fit=crop",
		"https://images.unsplash.com/photo-1570168007204-dfb528c6958f?w=800&h=400&fit=crop",
		"https://images.unsplash.com/photo-1532664189809-02133fee698d?w=800&h=400&fit=crop",
		"https://images.unsplash.com/photo-1561361058-c24cecae35ca?w=800&h=400&fit=crop",
	},
	"business": {
		"https://images.unsplash.com/photo-1611974789855-9c2a0a7236a3?w=800&h=400&fit=crop",
		"https://images.unsplash.com/photo-1460925895917-afdab827c52f?w=800&h=400&fit=crop",
		"https://images.unsplash.com/photo-1486406146926-c627a92ad1ab?w=800&h=400&fit=crop",
		"https://images.unsplash.com/photo-1553729459-efe14ef6055d?w=800&h=400&fit=crop",
		"https://images.unsplash.com/photo-1454165804606-c3d57bc86b40?w=800&h=400&fit=crop",
	},
	"technology": {
		"https://images.unsplash.com/photo-1518770660439-4636190af475?w=800&h=400&fit=crop",
		"https://images.unsplash.com/photo-1550751827-4bd374c3f58b?w=800&h=400&fit=crop",
		"https://images.unsplash.com/photo-1677442136019-21780ecad995?w=800&h=400&fit=crop",
		"https://images.unsplash.com/photo-1558494949-c5c8b5cc7e2c?w=800&h=400&fit=crop",
		"https://images.unsplash.com/photo-1488590528505-98d2b5aba04b?w=800&h=400&fit=crop",
	},
	"sports": {
		"https://images.unsplash.com/photo-1461896836934-ffe607ba8211?w=800&h=400&fit=crop",
		"https://images.unsplash.com/photo-1540747913346-19e32dc3e97e?w=800&h=400&fit=crop",
		"https://images.unsplash.com/photo-1579952363873-27f3bade9f55?w=800&h=400&fit=crop",
		"https://images.unsplash.com/photo-1587280501635-68a0e82cd5ff?w=800&h=400&fit=crop",
		"https://images.unsplash.com/photo-1546519638-68e109498ffc?w=800&h=400&fit=crop",
	},
	"entertainment": {
		"https://images.unsplash.com/photo-1470229722913-5f4c0a8e0c4b?w=800&h=400&fit=crop",
		"https://images.unsplash.com/photo-1489599849927-2ee91cede3ba?w=800&h=400&fit=crop",
		"https://images.unsplash.com/photo-1598899134739-24c46f58b8c0?w=800&h=400&fit=crop",
		"https://images.unsplash.com/photo-1514525253161-7a46d19cd819?w=800&h=400&fit=crop",
		"https://images.unsplash.com/photo-1501281668745-f7f57925c3b4?w=800&h=400&fit=crop",
	},
	"health": {
		"https://images.unsplash.com/photo-1579684385127-1ef15d508118?w=800&h=400&fit=crop",
		"https://images.unsplash.com/photo-1532938911079-1b06ac7ceec7?w=800&h=400&fit=crop",
		"https://images.unsplash.com/photo-1576091160399-112ba8d25d1d?w=800&h=400&fit=crop",
		"https://images.unsplash.com/photo-1505751172876-fa1923c5c528?w=800&h=400&fit=crop",
		"https://images.unsplash.com/photo-1571019613454-1cb2f99b2d8b?w=800&h=400&fit=crop",
	},
	"politics": {
		"https://images.unsplash.com/photo-1529107386315-e1a2ed48bc6a?w=800&h=400&fit=crop",
		"https://images.unsplash.com/photo-1540910419892-4a36d2c3266c?w=800&h=400&fit=crop",
		"https://images.unsplash.com/photo-1555848962-6e79363ec58f?w=800&h=400&fit=crop",
		"https://images.unsplash.com/photo-1517048676732-d65bc937f952?w=800&h=400&fit=crop",
		"https://images.unsplash.com/photo-1494172961521-33799ddd43a5?w=800&h=400&fit=crop",
	},
}

var aliases = map[string]string{"tech": "technology"}

// Generic stock shots that must never be shown.
var knownBad = []string{
	"https://images.unsplash.com/photo-1504711434969-e33886168f5c",
	"https://images.unsplash.com/photo-1585829365295-ab7cd400c167",
}

var bannedTerms = []string{"newspaper", "stacked papers"}

// negativeClause matches "--no <term>" suffixes, which ask the generator to avoid a term.
var negativeClause = regexp.MustCompile(`--no\s+[a-z ]+?(\s--|$)`)

// Catalog hands out images, avoiding repeats until a category is exhausted.
type Catalog struct {
	mu   sync.Mutex
	used map[string]bool
	rand *rand.Rand
}

func New(src rand.Source) *Catalog {
	return &Catalog{used: make(map[string]bool), rand: rand.New(src)}
}

func key(category string) string {
	k := strings.ToLower(strings.TrimSpace(category))
	if a, ok := aliases[k]; ok {
		k = a
	}
	if _, ok := images[k]; !ok {
		return defaultKey
	}
	return k
}

// Images returns the fixed list for a category (world when unknown).
func Images(category string) []string {
	return images[key(category)]
}

// Pick returns the next unused image for the category, then random ones.
func (c *Catalog) Pick(category string) string {
	list := images[key(category)]

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, img := range list {
		if !c.used[img] {
			c.used[img] = true
			return img
		}
	}
	return list[c.rand.Intn(len(list))]
}

// Validate returns imageURL unless it is missing, a known generic stock
// shot, or asks for a banned subject. Then it returns the category fallback.
func Validate(imageURL, category string) string {
	fallback := images[key(category)][0]
	if strings.TrimSpace(imageURL) == "" {
		return fallback
	}
	for _, bad := range knownBad {
		if strings.HasPrefix(imageURL, bad) {
			return fallback
		}
	}

	text := imageURL
	if decoded, err := url.PathUnescape(imageURL); err == nil {
		text = decoded
	}
	text = strings.ToLower(text)
	if i := strings.IndexByte(text, '?'); i >= 0 {
		text = text[:i]
	}
	text = stripNegatives(text)

	for _, term := range bannedTerms {
		if strings.Contains(text, term) {
			return fallback
		}
	}
	return imageURL
}

func stripNegatives(s string) string {
	for {
		out := negativeClause.ReplaceAllString(s, "$1")
		if out == s {
			return out
		}
		s = out
	}
}
