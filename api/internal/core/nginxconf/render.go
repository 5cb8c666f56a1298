package nginxconf

import (
	"fmt"
	"strings"
	"time"
)

// DefaultCertDir is where the commented certificate placeholders point.
const DefaultCertDir = "/etc/letsencrypt/live"

// Site is the subset of a proxy definition the renderer needs.
type Site struct {
	Name        string
	Domain      string
	Backend     string
	SSL         bool
	ExtraConfig string
}

// Render produces the full server block for a site. It performs no I/O and the
// output depends only on its arguments.
func Render(site Site, generatedAt time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Nginx reverse proxy - %s\n", site.Name)
	fmt.Fprintf(&b, "# Generated: %s\n", generatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "# Backend: %s\n", site.Backend)
	b.WriteString("\n")

	b.WriteString("server {\n")
	b.WriteString(listenStanza(site))
	b.WriteString("\n")
	fmt.Fprintf(&b, "    server_name %s;\n", site.Domain)
	b.WriteString("\n")

	inLocation, inServer := placeExtra(site.ExtraConfig)

	b.WriteString("    location / {\n")
	fmt.Fprintf(&b, "        proxy_pass %s;\n", site.Backend)
	b.WriteString("        proxy_http_version 1.1;\n")
	b.WriteString("        proxy_set_header Upgrade $http_upgrade;\n")
	b.WriteString("        proxy_set_header Connection 'upgrade';\n")
	b.WriteString("        proxy_set_header Host $host;\n")
	b.WriteString("        proxy_set_header X-Real-IP $remote_addr;\n")
	b.WriteString("        proxy_set_header X-Forwarded-For $proxy_add_x_forwarded_for;\n")
	b.WriteString("        proxy_set_header X-Forwarded-Proto $scheme;\n")
	b.WriteString("        proxy_cache_bypass $http_upgrade;\n")
	b.WriteString("        proxy_connect_timeout 60s;\n")
	b.WriteString("        proxy_send_timeout 60s;\n")
	b.WriteString("        proxy_read_timeout 60s;")
	b.WriteString(inLocation)
	b.WriteString("\n    }")
	b.WriteString(inServer)
	b.WriteString("\n}\n")

	return b.String()
}

func listenStanza(site Site) string {
	if !site.SSL {
		return "    listen 80;\n    listen [::]:80;"
	}

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString("    listen 443 ssl http2;\n")
	b.WriteString("    listen [::]:443 ssl http2;\n")
	b.WriteString("\n")
	b.WriteString("    # TLS certificates (Let's Encrypt or custom)\n")
	fmt.Fprintf(&b, "    # ssl_certificate %s/%s/fullchain.pem;\n", DefaultCertDir, site.Domain)
	fmt.Fprintf(&b, "    # ssl_certificate_key %s/%s/privkey.pem;\n", DefaultCertDir, site.Domain)
	b.WriteString("\n")
	b.WriteString("    ssl_protocols TLSv1.2 TLSv1.3;\n")
	b.WriteString("    ssl_ciphers HIGH:!aNULL:!MD5;\n")
	b.WriteString("    ssl_prefer_server_ciphers on;")
	return b.String()
}

// placeExtra decides where the extra block goes. Any mention of "location",
// including inside a comment, moves it to server scope.
func placeExtra(extra string) (inLocation, inServer string) {
	extra = strings.TrimSpace(extra)
	if extra == "" {
		return "", ""
	}

	if strings.Contains(extra, "location") {
		return "", "\n    # Additional configuration\n" + indentLines(extra, indentUnit)
	}
	return "\n        # Additional configuration\n" + indentLines(extra, indentUnit+indentUnit), ""
}

func indentLines(text, prefix string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = prefix + line
		}
	}
	return strings.Join(lines, "\n")
}
