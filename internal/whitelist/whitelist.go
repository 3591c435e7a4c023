package whitelist

import (
	"net/url"
	"strings"

	"go.uber.org/zap"
)

// Checker decides whether a browser origin may call the API. Entries are either
// "*", an exact origin such as "https://app.example.com", or a domain wildcard
// such as "*.example.com".
type Checker struct {
	allowAll bool
	origins  []string
	suffixes []string
	logger   *zap.Logger
}

// NewChecker creates a new origin checker
func NewChecker(origins []string, logger *zap.Logger) *Checker {
	c := &Checker{logger: logger}
	for _, origin := range origins {
		origin = strings.ToLower(strings.TrimSpace(origin))
		switch {
		case origin == "":
		case origin == "*":
			c.allowAll = true
		case strings.HasPrefix(origin, "*."):
			c.suffixes = append(c.suffixes, origin[1:])
		default:
			c.origins = append(c.origins, strings.TrimSuffix(origin, "/"))
		}
	}

	if logger != nil {
		logger.Info("Initialized origin whitelist",
			zap.Bool("allow_all", c.allowAll),
			zap.Strings("origins", c.origins),
			zap.Strings("domains", c.suffixes))
	}
	return c
}

// AllowAll reports whether every origin is accepted
func (c *Checker) AllowAll() bool {
	return c.allowAll
}

// IsWhitelisted checks if the origin may make cross-site requests
func (c *Checker) IsWhitelisted(origin string) bool {
	if c.allowAll {
		return true
	}
	origin = strings.ToLower(strings.TrimSuffix(origin, "/"))
	for _, allowed := range c.origins {
		if allowed == origin {
			return true
		}
	}

	u, err := url.Parse(origin)
	if err != nil || u.Hostname() == "" {
		return false
	}
	host := u.Hostname()
	for _, suffix := range c.suffixes {
		if strings.HasSuffix(host, suffix) {
			if c.logger != nil {
				c.logger.Debug("Origin matched domain wildcard",
					zap.String("origin", origin),
					zap.String("domain", "*"+suffix))
			}
			return true
		}
	}
	return false
}
