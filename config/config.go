package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// LoadEnv loads environment variables from .env file
func LoadEnv() {
	err := godotenv.Load()
	if err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}
}

// GetEnv gets an environment variable or returns a default value if not present
func GetEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// GetEnvInt gets an environment variable as an integer or returns a default value
func GetEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			log.Printf("Warning: invalid value for %s: %v", key, err)
			return fallback
		}
		return parsed
	}
	return fallback
}

// GetEnvBool gets an environment variable as a bool or returns a default value
func GetEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			log.Printf("Warning: invalid value for %s: %v", key, err)
			return fallback
		}
		return parsed
	}
	return fallback
}

// Settings holds all deployment platform configuration
type Settings struct {
	// AWS
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AWSRegion          string
	KeyPairName        string

	// EC2
	AMIID             string
	InstanceType      string
	VolumeSizeGB      int
	SecurityGroupName string
	AllowedSSHCIDR    string

	// SSH
	SSHUser       string
	SSHKeyFile    string
	SSHMaxWait    int // seconds
	SSHRetryDelay int // seconds

	// Docker
	ContainerPort int
	HostPort      int

	// Health checks
	HealthCheckRetries  int
	HealthCheckInterval int // seconds

	// Nginx reverse proxy
	EnableNginx bool

	// GitHub
	GitHubToken string

	// API
	APIKey    string
	JWTSecret string
}

// LoadSettings builds a Settings struct from the environment
func LoadSettings() Settings {
	return Settings{
		AWSAccessKeyID:     GetEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey: GetEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSRegion:          GetEnv("AWS_REGION", "us-east-1"),
		KeyPairName:        GetEnv("AWS_KEY_PAIR_NAME", ""),

		AMIID:             GetEnv("EC2_AMI_ID", "ami-0c55b159cbfafe1f0"),
		InstanceType:      GetEnv("EC2_INSTANCE_TYPE", "t2.micro"),
		VolumeSizeGB:      GetEnvInt("EC2_VOLUME_SIZE", 20),
		SecurityGroupName: GetEnv("SECURITY_GROUP_NAME", "autodock-deploy-sg"),
		AllowedSSHCIDR:    GetEnv("ALLOWED_SSH_IP", "0.0.0.0/0"),

		SSHUser:       GetEnv("SSH_USER", "ubuntu"),
		SSHKeyFile:    GetEnv("SSH_KEY_FILE", ""),
		SSHMaxWait:    GetEnvInt("SSH_MAX_WAIT", 180),
		SSHRetryDelay: GetEnvInt("SSH_RETRY_INTERVAL", 5),

		ContainerPort: GetEnvInt("DOCKER_CONTAINER_PORT", 8000),
		HostPort:      GetEnvInt("DOCKER_HOST_PORT", 8000),

		HealthCheckRetries:  GetEnvInt("HEALTH_CHECK_RETRIES", 5),
		HealthCheckInterval: GetEnvInt("HEALTH_CHECK_INTERVAL", 10),

		EnableNginx: GetEnvBool("ENABLE_NGINX", true),

		GitHubToken: GetEnv("GITHUB_TOKEN", ""),

		APIKey:    GetEnv("AUTODOCK_API_KEY", ""),
		JWTSecret: GetEnv("JWT_SECRET", ""),
	}
}

// Validate returns the list of missing required settings
func (s Settings) Validate() []string {
	var errors []string

	if s.AWSAccessKeyID == "" {
		errors = append(errors, "AWS_ACCESS_KEY_ID is required")
	}
	if s.AWSSecretAccessKey == "" {
		errors = append(errors, "AWS_SECRET_ACCESS_KEY is required")
	}
	if s.KeyPairName == "" {
		errors = append(errors, "AWS_KEY_PAIR_NAME is required")
	}

	return errors
}
