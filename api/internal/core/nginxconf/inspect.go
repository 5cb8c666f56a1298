package nginxconf

import "strings"

// Summary is what can be recovered from a rendered config without parsing it.
type Summary struct {
	Domain  string
	Backend string
	SSL     bool
}

// Inspect scans rendered text for the first server_name and proxy_pass
// directives. Missing values are reported as "unknown".
func Inspect(text string) Summary {
	return Summary{
		Domain:  firstArgument(text, "server_name"),
		Backend: firstArgument(text, "proxy_pass"),
		SSL:     strings.Contains(text, "listen 443 ssl"),
	}
}

func firstArgument(text, directive string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, directive) {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return "unknown"
		}
		return strings.TrimRight(fields[1], ";")
	}
	return "unknown"
}
