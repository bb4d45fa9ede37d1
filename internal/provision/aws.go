// Package provision creates ephemeral build hosts on EC2 for Aws
// builders. Credentials come from the standard AWS environment or
// shared config; only the region is configured on the core.
package provision

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/monitordev/monitor/internal/errors"
	"github.com/monitordev/monitor/internal/types"
	"github.com/monitordev/monitor/internal/util"
)

// peripheryPort is the port the agent AMI listens on.
const peripheryPort = 8120

// instanceReadyTimeout bounds the wait for a fresh instance to enter
// the running state and report an address.
const instanceReadyTimeout = 5 * time.Minute

// AwsProvisioner launches and terminates build instances.
type AwsProvisioner struct {
	client *ec2.Client
	logger *slog.Logger
}

// NewAwsProvisioner loads AWS credentials from the environment and
// returns a provisioner bound to the region.
func NewAwsProvisioner(ctx context.Context, region string) (*AwsProvisioner, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, errors.Wrap(errors.KindInternal, "failed to load aws config", err)
	}
	return &AwsProvisioner{
		client: ec2.NewFromConfig(cfg),
		logger: util.With("component", "provision"),
	}, nil
}

// Provision launches an instance per the builder's params, waits for
// it to report an address, and returns it as an ephemeral server. The
// terminate func tears the instance down.
func (p *AwsProvisioner) Provision(ctx context.Context, builder *types.Builder, name string) (*types.Server, func(context.Context) error, error) {
	params := builder.Config.Params
	if params.AMI == "" {
		return nil, nil, errors.Newf(errors.KindValidation,
			"builder %s has no ami configured", builder.Name)
	}

	input := &ec2.RunInstancesInput{
		ImageId:      aws.String(params.AMI),
		InstanceType: ec2types.InstanceType(params.InstanceType),
		MinCount:     aws.Int32(1),
		MaxCount:     aws.Int32(1),
		NetworkInterfaces: []ec2types.InstanceNetworkInterfaceSpecification{{
			DeviceIndex:              aws.Int32(0),
			AssociatePublicIpAddress: aws.Bool(params.AssignPublicIP),
			SubnetId:                 stringOrNil(params.SubnetID),
			Groups:                   params.SecurityGroups,
		}},
		TagSpecifications: []ec2types.TagSpecification{{
			ResourceType: ec2types.ResourceTypeInstance,
			Tags: []ec2types.Tag{{
				Key:   aws.String("Name"),
				Value: aws.String("monitor-build-" + name),
			}},
		}},
	}
	if params.KeyPairName != "" {
		input.KeyName = aws.String(params.KeyPairName)
	}
	if params.VolumeGB > 0 {
		input.BlockDeviceMappings = []ec2types.BlockDeviceMapping{{
			DeviceName: aws.String("/dev/sda1"),
			Ebs: &ec2types.EbsBlockDevice{
				VolumeSize: aws.Int32(int32(params.VolumeGB)),
			},
		}}
	}

	out, err := p.client.RunInstances(ctx, input)
	if err != nil {
		return nil, nil, errors.Wrap(errors.KindInternal, "failed to launch build instance", err)
	}
	if len(out.Instances) == 0 || out.Instances[0].InstanceId == nil {
		return nil, nil, errors.New(errors.KindInternal, "ec2 returned no instance")
	}
	instanceID := *out.Instances[0].InstanceId
	terminate := func(ctx context.Context) error {
		_, err := p.client.TerminateInstances(ctx, &ec2.TerminateInstancesInput{
			InstanceIds: []string{instanceID},
		})
		if err != nil {
			return errors.Wrap(errors.KindInternal, "failed to terminate build instance", err)
		}
		p.logger.Info("terminated build instance", "instance", instanceID)
		return nil
	}

	address, err := p.waitForAddress(ctx, instanceID, params.AssignPublicIP)
	if err != nil {
		if terr := terminate(ctx); terr != nil {
			p.logger.Error("failed to terminate instance after launch failure",
				"instance", instanceID, "err", terr)
		}
		return nil, nil, err
	}
	p.logger.Info("provisioned build instance",
		"instance", instanceID, "address", address, "builder", builder.Name)

	server := types.NewServer()
	server.Name = "ephemeral-" + name
	server.Config.Address = address
	server.Config.Region = params.Region
	server.Config.InstanceID = instanceID
	return server, terminate, nil
}

func (p *AwsProvisioner) waitForAddress(ctx context.Context, instanceID string, public bool) (string, error) {
	waiter := ec2.NewInstanceRunningWaiter(p.client)
	describe := &ec2.DescribeInstancesInput{InstanceIds: []string{instanceID}}
	if err := waiter.Wait(ctx, describe, instanceReadyTimeout); err != nil {
		return "", errors.Wrap(errors.KindInternal, "build instance never became ready", err)
	}

	out, err := p.client.DescribeInstances(ctx, describe)
	if err != nil {
		return "", errors.Wrap(errors.KindInternal, "failed to describe build instance", err)
	}
	if len(out.Reservations) == 0 || len(out.Reservations[0].Instances) == 0 {
		return "", errors.New(errors.KindInternal, "build instance disappeared")
	}
	instance := out.Reservations[0].Instances[0]

	ip := instance.PrivateIpAddress
	if public {
		ip = instance.PublicIpAddress
	}
	if ip == nil || *ip == "" {
		return "", errors.New(errors.KindInternal, "build instance has no ip address")
	}
	return fmt.Sprintf("http://%s:%d", *ip, peripheryPort), nil
}

func stringOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return aws.String(s)
}
