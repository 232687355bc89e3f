// Package compute wraps the AWS EC2 API behind the coarse-grained
// instance operations the deployment engine needs.
package compute

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/autodock-deploy/config"
)

const managedByTag = "AutodockDeploy"

// InstanceInfo describes a provisioned instance
type InstanceInfo struct {
	InstanceID      string `json:"instanceId"`
	PublicIP        string `json:"publicIp"`
	PrivateIP       string `json:"privateIp"`
	InstanceType    string `json:"instanceType"`
	State           string `json:"state"`
	SecurityGroupID string `json:"securityGroupId"`
	LaunchTime      string `json:"launchTime,omitempty"`
}

// Manager provisions and manages EC2 instances
type Manager struct {
	client   *ec2.Client
	settings config.Settings
}

// NewManager creates an EC2 manager. Explicit credentials from settings
// take precedence; otherwise the SDK default credential chain applies.
func NewManager(ctx context.Context, settings config.Settings) (*Manager, error) {
	var cfg aws.Config
	var err error

	if settings.AWSAccessKeyID != "" && settings.AWSSecretAccessKey != "" {
		cfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(settings.AWSRegion),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				settings.AWSAccessKeyID,
				settings.AWSSecretAccessKey,
				"",
			)),
		)
	} else {
		cfg, err = awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(settings.AWSRegion))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	log.Printf("EC2 manager initialized for region: %s", settings.AWSRegion)
	return &Manager{client: ec2.NewFromConfig(cfg), settings: settings}, nil
}

// EnsureSecurityGroup returns the deployment security group, creating
// it with SSH/HTTP/HTTPS ingress (plus the direct application port when
// the reverse proxy is disabled) if it does not exist yet.
func (m *Manager) EnsureSecurityGroup(ctx context.Context) (string, error) {
	name := m.settings.SecurityGroupName

	existing, err := m.client.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{
		Filters: []types.Filter{{Name: aws.String("group-name"), Values: []string{name}}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to look up security group: %w", err)
	}
	if len(existing.SecurityGroups) > 0 {
		return aws.ToString(existing.SecurityGroups[0].GroupId), nil
	}

	log.Printf("Creating security group: %s", name)
	created, err := m.client.CreateSecurityGroup(ctx, &ec2.CreateSecurityGroupInput{
		GroupName:   aws.String(name),
		Description: aws.String("Security group for autodock application deployment"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create security group: %w", err)
	}
	groupID := aws.ToString(created.GroupId)

	if _, err := m.client.AuthorizeSecurityGroupIngress(ctx, &ec2.AuthorizeSecurityGroupIngressInput{
		GroupId:       aws.String(groupID),
		IpPermissions: m.ingressRules(),
	}); err != nil {
		return "", fmt.Errorf("failed to configure security group rules: %w", err)
	}

	return groupID, nil
}

func (m *Manager) ingressRules() []types.IpPermission {
	tcpRule := func(port int32, cidr, description string) types.IpPermission {
		return types.IpPermission{
			IpProtocol: aws.String("tcp"),
			FromPort:   aws.Int32(port),
			ToPort:     aws.Int32(port),
			IpRanges: []types.IpRange{{
				CidrIp:      aws.String(cidr),
				Description: aws.String(description),
			}},
		}
	}

	rules := []types.IpPermission{
		tcpRule(22, m.settings.AllowedSSHCIDR, "SSH access"),
		tcpRule(80, "0.0.0.0/0", "HTTP access"),
		tcpRule(443, "0.0.0.0/0", "HTTPS access"),
	}

	// Direct container access only when no reverse proxy fronts the app
	if !m.settings.EnableNginx {
		rules = append(rules, tcpRule(int32(m.settings.HostPort), "0.0.0.0/0", "Application direct access"))
	}

	return rules
}

// CreateInstance launches a new instance, waits until it is running,
// and returns its identifiers and addresses
func (m *Manager) CreateInstance(ctx context.Context, name string) (InstanceInfo, error) {
	groupID, err := m.EnsureSecurityGroup(ctx)
	if err != nil {
		return InstanceInfo{}, err
	}

	log.Printf("Creating EC2 instance: %s (type=%s ami=%s)", name, m.settings.InstanceType, m.settings.AMIID)

	userData := base64.StdEncoding.EncodeToString([]byte("#!/bin/bash\nsudo apt-get update\nsudo apt-get upgrade -y\n"))

	out, err := m.client.RunInstances(ctx, &ec2.RunInstancesInput{
		ImageId:          aws.String(m.settings.AMIID),
		InstanceType:     types.InstanceType(m.settings.InstanceType),
		KeyName:          aws.String(m.settings.KeyPairName),
		SecurityGroupIds: []string{groupID},
		MinCount:         aws.Int32(1),
		MaxCount:         aws.Int32(1),
		UserData:         aws.String(userData),
		BlockDeviceMappings: []types.BlockDeviceMapping{{
			DeviceName: aws.String("/dev/sda1"),
			Ebs: &types.EbsBlockDevice{
				VolumeSize:          aws.Int32(int32(m.settings.VolumeSizeGB)),
				VolumeType:          types.VolumeTypeGp3,
				DeleteOnTermination: aws.Bool(true),
			},
		}},
		TagSpecifications: []types.TagSpecification{{
			ResourceType: types.ResourceTypeInstance,
			Tags: []types.Tag{
				{Key: aws.String("Name"), Value: aws.String(name)},
				{Key: aws.String("ManagedBy"), Value: aws.String(managedByTag)},
			},
		}},
	})
	if err != nil {
		return InstanceInfo{}, fmt.Errorf("failed to create EC2 instance: %w", err)
	}
	if len(out.Instances) == 0 {
		return InstanceInfo{}, fmt.Errorf("RunInstances returned no instances")
	}

	instanceID := aws.ToString(out.Instances[0].InstanceId)
	log.Printf("Instance created: %s, waiting for running state...", instanceID)

	waiter := ec2.NewInstanceRunningWaiter(m.client)
	describeInput := &ec2.DescribeInstancesInput{InstanceIds: []string{instanceID}}
	if err := waiter.Wait(ctx, describeInput, 5*time.Minute); err != nil {
		return InstanceInfo{}, fmt.Errorf("instance %s never reached running state: %w", instanceID, err)
	}

	info, err := m.GetInstanceStatus(ctx, instanceID)
	if err != nil {
		return InstanceInfo{}, err
	}
	info.SecurityGroupID = groupID

	log.Printf("Instance is running. Public IP: %s", info.PublicIP)
	return info, nil
}

// GetInstanceStatus describes one instance
func (m *Manager) GetInstanceStatus(ctx context.Context, instanceID string) (InstanceInfo, error) {
	out, err := m.client.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: []string{instanceID},
	})
	if err != nil {
		return InstanceInfo{}, fmt.Errorf("failed to describe instance %s: %w", instanceID, err)
	}

	for _, reservation := range out.Reservations {
		for _, inst := range reservation.Instances {
			return instanceInfoFrom(inst), nil
		}
	}
	return InstanceInfo{}, fmt.Errorf("instance %s not found", instanceID)
}

// StopInstance initiates a stop
func (m *Manager) StopInstance(ctx context.Context, instanceID string) error {
	log.Printf("Stopping instance: %s", instanceID)
	_, err := m.client.StopInstances(ctx, &ec2.StopInstancesInput{InstanceIds: []string{instanceID}})
	if err != nil {
		return fmt.Errorf("failed to stop instance %s: %w", instanceID, err)
	}
	return nil
}

// StartInstance initiates a start of a stopped instance
func (m *Manager) StartInstance(ctx context.Context, instanceID string) error {
	log.Printf("Starting instance: %s", instanceID)
	_, err := m.client.StartInstances(ctx, &ec2.StartInstancesInput{InstanceIds: []string{instanceID}})
	if err != nil {
		return fmt.Errorf("failed to start instance %s: %w", instanceID, err)
	}
	return nil
}

// TerminateInstance initiates termination
func (m *Manager) TerminateInstance(ctx context.Context, instanceID string) error {
	log.Printf("Terminating instance: %s", instanceID)
	_, err := m.client.TerminateInstances(ctx, &ec2.TerminateInstancesInput{InstanceIds: []string{instanceID}})
	if err != nil {
		return fmt.Errorf("failed to terminate instance %s: %w", instanceID, err)
	}
	return nil
}

// ListInstances returns all instances this platform manages
func (m *Manager) ListInstances(ctx context.Context) ([]InstanceInfo, error) {
	out, err := m.client.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		Filters: []types.Filter{{
			Name:   aws.String("tag:ManagedBy"),
			Values: []string{managedByTag},
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}

	var instances []InstanceInfo
	for _, reservation := range out.Reservations {
		for _, inst := range reservation.Instances {
			instances = append(instances, instanceInfoFrom(inst))
		}
	}
	return instances, nil
}

func instanceInfoFrom(inst types.Instance) InstanceInfo {
	info := InstanceInfo{
		InstanceID:   aws.ToString(inst.InstanceId),
		PublicIP:     aws.ToString(inst.PublicIpAddress),
		PrivateIP:    aws.ToString(inst.PrivateIpAddress),
		InstanceType: string(inst.InstanceType),
	}
	if inst.State != nil {
		info.State = string(inst.State.Name)
	}
	if inst.LaunchTime != nil {
		info.LaunchTime = inst.LaunchTime.Format(time.RFC3339)
	}
	return info
}
