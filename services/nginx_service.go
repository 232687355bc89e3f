package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
)

const siteConfigTemplate = `server {
    listen 80;
    server_name %s;

    location / {
        proxy_pass http://127.0.0.1:%d;
        proxy_http_version 1.1;

        proxy_set_header Host $host;
        proxy_set_header X-Real-IP $remote_addr;
        proxy_set_header X-Forwarded-For $proxy_add_x_forwarded_for;
        proxy_set_header X-Forwarded-Proto $scheme;

        proxy_set_header Upgrade $http_upgrade;
        proxy_set_header Connection "upgrade";

        proxy_connect_timeout 60s;
        proxy_send_timeout 60s;
        proxy_read_timeout 60s;
    }

    location /health {
        access_log off;
        return 200 "healthy\n";
        add_header Content-Type text/plain;
    }
}
`

// NginxService installs and configures the nginx reverse proxy on a
// remote host
type NginxService struct {
	runner RemoteRunner
}

func NewNginxService(runner RemoteRunner) *NginxService {
	return &NginxService{runner: runner}
}

// InstallNginx installs nginx and enables it at boot
func (s *NginxService) InstallNginx(ctx context.Context) (string, error) {
	if s.IsNginxInstalled(ctx) {
		res, err := s.runner.Run(ctx, "nginx -v", 30*time.Second)
		if err == nil && res.Ok() {
			version := strings.TrimSpace(res.Stderr)
			log.Println("NGINX already installed:", version)
			return version, nil
		}
	}

	log.Println("Installing NGINX on remote instance...")

	commands := []string{
		aptGet + " update",
		aptGet + " install -y nginx",
		"sudo systemctl start nginx",
		"sudo systemctl enable nginx",
		"nginx -v",
	}

	results, err := s.runner.RunSequence(ctx, commands, true)
	if err != nil {
		return "", fmt.Errorf("nginx installation failed: %w", err)
	}
	for i, res := range results {
		if !res.Ok() {
			return "", fmt.Errorf("failed at command %d: %s: %s", i+1, commands[i], strings.TrimSpace(res.Stderr))
		}
	}

	// nginx -v writes its version to stderr
	version := strings.TrimSpace(results[len(results)-1].Stderr)
	log.Println("NGINX installed successfully:", version)
	return version, nil
}

// IsNginxInstalled reports whether nginx is already present
func (s *NginxService) IsNginxInstalled(ctx context.Context) bool {
	res, err := s.runner.Run(ctx, "nginx -v", 30*time.Second)
	return err == nil && res.Ok()
}

// CreateSiteConfig writes a reverse proxy site configuration that
// forwards port 80 to the application port
func (s *NginxService) CreateSiteConfig(ctx context.Context, appName string, proxyPort int, serverName string) error {
	if serverName == "" {
		serverName = "_"
	}
	log.Println("Creating NGINX configuration for", appName)

	siteConfig := fmt.Sprintf(siteConfigTemplate, serverName, proxyPort)
	tempPath := fmt.Sprintf("/tmp/%s.conf", appName)
	configPath := fmt.Sprintf("/etc/nginx/sites-available/%s", appName)

	writeCmd := fmt.Sprintf("cat > %s << 'EOF'\n%s\nEOF", tempPath, siteConfig)
	res, err := s.runner.Run(ctx, writeCmd, time.Minute)
	if err != nil {
		return err
	}
	if !res.Ok() {
		return fmt.Errorf("failed to create config file: %s", strings.TrimSpace(res.Stderr))
	}

	res, err = s.runner.Run(ctx, fmt.Sprintf("sudo mv %s %s", tempPath, configPath), time.Minute)
	if err != nil {
		return err
	}
	if !res.Ok() {
		return fmt.Errorf("failed to move config file: %s", strings.TrimSpace(res.Stderr))
	}

	log.Println("NGINX configuration created at", configPath)
	return nil
}

// EnableSite links the site into sites-enabled, removing the default
// site, and validates the resulting configuration
func (s *NginxService) EnableSite(ctx context.Context, appName string) error {
	log.Println("Enabling NGINX site:", appName)

	// Best effort; the default site may already be gone
	s.runner.Run(ctx, "sudo rm -f /etc/nginx/sites-enabled/default", time.Minute)

	symlink := fmt.Sprintf("sudo ln -sf /etc/nginx/sites-available/%s /etc/nginx/sites-enabled/%s", appName, appName)
	res, err := s.runner.Run(ctx, symlink, time.Minute)
	if err != nil {
		return err
	}
	if !res.Ok() {
		return fmt.Errorf("failed to enable site: %s", strings.TrimSpace(res.Stderr))
	}

	res, err = s.runner.Run(ctx, "sudo nginx -t", time.Minute)
	if err != nil {
		return err
	}
	if !res.Ok() {
		return fmt.Errorf("nginx configuration test failed: %s", strings.TrimSpace(res.Stderr))
	}

	return nil
}

// ReloadNginx reloads configuration without dropping connections
func (s *NginxService) ReloadNginx(ctx context.Context) error {
	log.Println("Reloading NGINX configuration...")
	res, err := s.runner.Run(ctx, "sudo systemctl reload nginx", time.Minute)
	if err != nil {
		return err
	}
	if !res.Ok() {
		return fmt.Errorf("failed to reload nginx: %s", strings.TrimSpace(res.Stderr))
	}
	return nil
}

// DisableSite removes a site from sites-enabled and reloads
func (s *NginxService) DisableSite(ctx context.Context, appName string) error {
	log.Println("Disabling NGINX site:", appName)
	res, err := s.runner.Run(ctx, fmt.Sprintf("sudo rm -f /etc/nginx/sites-enabled/%s", appName), time.Minute)
	if err != nil {
		return err
	}
	if !res.Ok() {
		return fmt.Errorf("failed to disable site: %s", strings.TrimSpace(res.Stderr))
	}
	return s.ReloadNginx(ctx)
}
