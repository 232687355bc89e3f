package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"
)

// ContainerStatus summarizes a container's runtime state on the host
type ContainerStatus struct {
	Name      string `json:"name"`
	Status    string `json:"status"`
	Running   bool   `json:"running"`
	StartedAt string `json:"startedAt,omitempty"`
	Image     string `json:"image,omitempty"`
	Error     string `json:"error,omitempty"`
}

// DockerService installs Docker and manages images and containers on a
// remote host over an established command channel
type DockerService struct {
	runner RemoteRunner
}

func NewDockerService(runner RemoteRunner) *DockerService {
	return &DockerService{runner: runner}
}

// InstallDocker installs Docker Engine on the remote Ubuntu host. It
// first waits for cloud-init so the boot-time apt jobs cannot race the
// installation.
func (s *DockerService) InstallDocker(ctx context.Context) (string, error) {
	if s.IsDockerInstalled(ctx) {
		res, err := s.runner.Run(ctx, "sudo docker --version", 30*time.Second)
		if err == nil && res.Ok() {
			version := strings.TrimSpace(res.Stdout)
			log.Println("Docker already installed:", version)
			return version, nil
		}
	}

	log.Println("Installing Docker on remote instance...")

	log.Println("Waiting for cloud-init and boot processes to finish...")
	if _, err := s.runner.Run(ctx, "cloud-init status --wait || true", 10*time.Minute); err != nil {
		return "", fmt.Errorf("failed waiting for boot to complete: %w", err)
	}
	log.Println("System boot complete. Ready for Docker installation.")

	commands := []string{
		aptGet + " update",
		aptGet + " install -y ca-certificates curl gnupg lsb-release",
		"sudo mkdir -p /etc/apt/keyrings",
		"curl -fsSL https://download.docker.com/linux/ubuntu/gpg | sudo gpg --dearmor -o /etc/apt/keyrings/docker.gpg || true",
		`echo "deb [arch=$(dpkg --print-architecture) signed-by=/etc/apt/keyrings/docker.gpg] https://download.docker.com/linux/ubuntu $(lsb_release -cs) stable" | sudo tee /etc/apt/sources.list.d/docker.list > /dev/null`,
		aptGet + " update",
		aptGet + " install -y docker-ce docker-ce-cli containerd.io docker-buildx-plugin docker-compose-plugin",
		"sudo usermod -aG docker $(whoami)",
		"sudo systemctl start docker",
		"sudo systemctl enable docker",
		"sudo docker --version",
	}

	results, err := s.runner.RunSequence(ctx, commands, true)
	if err != nil {
		return "", fmt.Errorf("docker installation failed: %w", err)
	}
	for i, res := range results {
		if !res.Ok() {
			return "", fmt.Errorf("failed at command %d: %s: %s", i+1, commands[i], strings.TrimSpace(res.Stderr))
		}
	}

	version := strings.TrimSpace(results[len(results)-1].Stdout)
	log.Println("Docker installed successfully:", version)
	return version, nil
}

// IsDockerInstalled reports whether the Docker CLI already responds
func (s *DockerService) IsDockerInstalled(ctx context.Context) bool {
	res, err := s.runner.Run(ctx, "sudo docker --version", 30*time.Second)
	return err == nil && res.Ok()
}

// BuildImage builds an image from the Dockerfile in projectPath
func (s *DockerService) BuildImage(ctx context.Context, projectPath, imageName, tag string) error {
	if tag == "" {
		tag = "latest"
	}
	log.Printf("Building Docker image: %s:%s", imageName, tag)

	command := fmt.Sprintf("cd %s && sudo docker build -t %s:%s .", projectPath, imageName, tag)
	res, err := s.runner.Run(ctx, command, 10*time.Minute)
	if err != nil {
		return fmt.Errorf("image build failed: %w", err)
	}
	if !res.Ok() {
		return fmt.Errorf("failed to build Docker image: %s", strings.TrimSpace(res.Stderr))
	}

	log.Printf("Docker image built successfully: %s:%s", imageName, tag)
	return nil
}

// RunContainer starts a detached container with the given port mapping
// and an unless-stopped restart policy, returning the container id
func (s *DockerService) RunContainer(ctx context.Context, image, containerName string, hostPort, containerPort int, envVars map[string]string) (string, error) {
	log.Println("Running Docker container:", containerName)

	var b strings.Builder
	b.WriteString("sudo docker run -d --restart unless-stopped")
	fmt.Fprintf(&b, " --name %s", containerName)
	fmt.Fprintf(&b, " -p %d:%d", hostPort, containerPort)
	for key, value := range envVars {
		fmt.Fprintf(&b, " -e %s=%q", key, value)
	}
	b.WriteString(" " + image)

	res, err := s.runner.Run(ctx, b.String(), 2*time.Minute)
	if err != nil {
		return "", fmt.Errorf("container start failed: %w", err)
	}
	if !res.Ok() {
		return "", fmt.Errorf("failed to start container: %s", strings.TrimSpace(res.Stderr))
	}

	containerID := strings.TrimSpace(res.Stdout)
	if len(containerID) > 12 {
		containerID = containerID[:12]
	}
	log.Println("Container started successfully:", containerID)
	return containerID, nil
}

// GetContainerStatus inspects one container
func (s *DockerService) GetContainerStatus(ctx context.Context, containerName string) ContainerStatus {
	res, err := s.runner.Run(ctx, "sudo docker inspect "+containerName, time.Minute)
	if err != nil {
		return ContainerStatus{Status: "error", Error: err.Error()}
	}
	if !res.Ok() {
		return ContainerStatus{Status: "not_found"}
	}

	var inspected []struct {
		Name  string `json:"Name"`
		State struct {
			Status    string `json:"Status"`
			Running   bool   `json:"Running"`
			StartedAt string `json:"StartedAt"`
		} `json:"State"`
		Config struct {
			Image string `json:"Image"`
		} `json:"Config"`
	}
	if err := json.Unmarshal([]byte(res.Stdout), &inspected); err != nil || len(inspected) == 0 {
		return ContainerStatus{Status: "error", Error: "unexpected docker inspect output"}
	}

	info := inspected[0]
	return ContainerStatus{
		Name:      strings.TrimPrefix(info.Name, "/"),
		Status:    info.State.Status,
		Running:   info.State.Running,
		StartedAt: info.State.StartedAt,
		Image:     info.Config.Image,
	}
}

// GetContainerLogs returns the last tail lines of a container's output
func (s *DockerService) GetContainerLogs(ctx context.Context, containerName string, tail int) (string, error) {
	if tail <= 0 {
		tail = 100
	}
	res, err := s.runner.Run(ctx, fmt.Sprintf("sudo docker logs --tail %d %s", tail, containerName), time.Minute)
	if err != nil {
		return "", err
	}
	return res.Stdout + res.Stderr, nil
}

// StopContainer stops a running container
func (s *DockerService) StopContainer(ctx context.Context, containerName string) error {
	log.Println("Stopping container:", containerName)
	res, err := s.runner.Run(ctx, "sudo docker stop "+containerName, 2*time.Minute)
	if err != nil {
		return err
	}
	if !res.Ok() {
		return fmt.Errorf("failed to stop container: %s", strings.TrimSpace(res.Stderr))
	}
	return nil
}

// RemoveContainer removes a container, optionally forcing removal while
// it is still running
func (s *DockerService) RemoveContainer(ctx context.Context, containerName string, force bool) error {
	log.Println("Removing container:", containerName)
	command := "sudo docker rm "
	if force {
		command += "-f "
	}
	res, err := s.runner.Run(ctx, command+containerName, time.Minute)
	if err != nil {
		return err
	}
	if !res.Ok() {
		return fmt.Errorf("failed to remove container: %s", strings.TrimSpace(res.Stderr))
	}
	return nil
}
