package provider

import (
	"context"
	"fmt"
	"sort"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/mjtechguy/roughneck/internal/deployment"
	"github.com/mjtechguy/roughneck/internal/util/retry"
)

func init() {
	register(&awsAdapter{})
}

// awsCommonFamilies keeps the instance type listing manageable.
var awsCommonFamilies = []string{"t3", "t3a", "t4g", "m6i", "m6a", "m7i", "c6i", "c6a"}

var awsRegionNames = map[string]string{
	"us-east-1":      "US East (N. Virginia)",
	"us-east-2":      "US East (Ohio)",
	"us-west-1":      "US West (N. California)",
	"us-west-2":      "US West (Oregon)",
	"eu-west-1":      "Europe (Ireland)",
	"eu-west-2":      "Europe (London)",
	"eu-west-3":      "Europe (Paris)",
	"eu-central-1":   "Europe (Frankfurt)",
	"eu-north-1":     "Europe (Stockholm)",
	"ap-northeast-1": "Asia Pacific (Tokyo)",
	"ap-northeast-2": "Asia Pacific (Seoul)",
	"ap-southeast-1": "Asia Pacific (Singapore)",
	"ap-southeast-2": "Asia Pacific (Sydney)",
	"ap-south-1":     "Asia Pacific (Mumbai)",
	"sa-east-1":      "South America (São Paulo)",
	"ca-central-1":   "Canada (Central)",
}

// awsCatalogClient is the slice of the EC2 API the adapter needs.
type awsCatalogClient interface {
	DescribeRegions(ctx context.Context, params *ec2.DescribeRegionsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeRegionsOutput, error)
	DescribeInstanceTypes(ctx context.Context, params *ec2.DescribeInstanceTypesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstanceTypesOutput, error)
}

// newAWSCatalog is swapped in tests.
var newAWSCatalog = func(ctx context.Context, accessKey, secretKey, region string) (awsCatalogClient, error) {
	if region == "" {
		region = "us-east-1"
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
	)
	if err != nil {
		return nil, err
	}
	return ec2.NewFromConfig(cfg), nil
}

type awsAdapter struct{}

func (a *awsAdapter) Kind() string        { return "aws" }
func (a *awsAdapter) DisplayName() string { return "AWS EC2" }
func (a *awsAdapter) DefaultUser() string { return "ubuntu" }

func (a *awsAdapter) CredentialEnv(cfg *deployment.Config) map[string]string {
	if cfg.AWSAccessKey == "" {
		return nil
	}
	return map[string]string{
		"AWS_ACCESS_KEY_ID":     cfg.AWSAccessKey,
		"AWS_SECRET_ACCESS_KEY": cfg.AWSSecretKey,
	}
}

func (a *awsAdapter) BuildServerSpec(cfg *deployment.Config) []Var {
	return []Var{
		{Key: "aws_region", Value: cfg.AWSRegion},
		{Key: "aws_instance_type", Value: cfg.AWSInstanceType},
	}
}

func (a *awsAdapter) MissingFields(cfg *deployment.Config) []string {
	var missing []string
	if cfg.CredentialProfile == "" {
		if cfg.AWSAccessKey == "" {
			missing = append(missing, "aws_access_key")
		}
		if cfg.AWSSecretKey == "" {
			missing = append(missing, "aws_secret_key")
		}
	}
	return append(missing, missingKeys(a.BuildServerSpec(cfg))...)
}

func (a *awsAdapter) NormalizeOutputs(raw map[string]string) (Outputs, error) {
	out := Outputs{Address: raw["server_ip"], InstanceID: raw["instance_id"]}
	if out.Address == "" {
		return Outputs{}, fmt.Errorf("provisioning reported success but produced no server address")
	}
	return out, nil
}

func (a *awsAdapter) Catalog(ctx context.Context, cfg *deployment.Config) (*Catalog, error) {
	client, err := newAWSCatalog(ctx, cfg.AWSAccessKey, cfg.AWSSecretKey, cfg.AWSRegion)
	if err != nil {
		return nil, fmt.Errorf("failed to build aws client: %w", err)
	}

	catalog := &Catalog{}

	var regions *ec2.DescribeRegionsOutput
	err = retry.WithExponentialBackoff(ctx, func() error {
		var err error
		regions, err = client.DescribeRegions(ctx, &ec2.DescribeRegionsInput{})
		return err
	}, retry.WithMaxRetries(2))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch aws regions: %w", err)
	}
	for _, region := range regions.Regions {
		name := deref(region.RegionName)
		display := awsRegionNames[name]
		if display == "" {
			display = name
		}
		catalog.Locations = append(catalog.Locations, CatalogEntry{
			ID:    name,
			Label: fmt.Sprintf("%s (%s)", display, name),
		})
	}
	sort.Slice(catalog.Locations, func(i, j int) bool {
		return catalog.Locations[i].Label < catalog.Locations[j].Label
	})

	values := make([]string, len(awsCommonFamilies))
	for i, family := range awsCommonFamilies {
		values[i] = family + ".*"
	}
	input := &ec2.DescribeInstanceTypesInput{
		Filters: []ec2types.Filter{{Name: strPtr("instance-type"), Values: values}},
	}
	for {
		var page *ec2.DescribeInstanceTypesOutput
		err = retry.WithExponentialBackoff(ctx, func() error {
			var err error
			page, err = client.DescribeInstanceTypes(ctx, input)
			return err
		}, retry.WithMaxRetries(2))
		if err != nil {
			return nil, fmt.Errorf("failed to fetch aws instance types: %w", err)
		}
		for _, it := range page.InstanceTypes {
			name := string(it.InstanceType)
			var vcpus int32
			if it.VCpuInfo != nil && it.VCpuInfo.DefaultVCpus != nil {
				vcpus = *it.VCpuInfo.DefaultVCpus
			}
			var memGB int64
			if it.MemoryInfo != nil && it.MemoryInfo.SizeInMiB != nil {
				memGB = *it.MemoryInfo.SizeInMiB / 1024
			}
			catalog.Sizes = append(catalog.Sizes, CatalogEntry{
				ID:    name,
				Label: fmt.Sprintf("%s - %d vCPU, %dGB RAM", name, vcpus, memGB),
			})
		}
		if page.NextToken == nil {
			break
		}
		input.NextToken = page.NextToken
	}
	sortAWSInstanceTypes(catalog.Sizes)

	return catalog, nil
}

var awsSizeOrder = map[string]int{
	"nano": 0, "micro": 1, "small": 2, "medium": 3,
	"large": 4, "xlarge": 5, "2xlarge": 6,
}

// sortAWSInstanceTypes orders by family (in the common-family order) then by
// size within the family.
func sortAWSInstanceTypes(sizes []CatalogEntry) {
	familyRank := func(name string) int {
		family, _, _ := strings.Cut(name, ".")
		for i, f := range awsCommonFamilies {
			if f == family {
				return i
			}
		}
		return len(awsCommonFamilies)
	}
	sizeRank := func(name string) int {
		_, size, _ := strings.Cut(name, ".")
		if rank, ok := awsSizeOrder[size]; ok {
			return rank
		}
		return 10
	}
	sort.SliceStable(sizes, func(i, j int) bool {
		fi, fj := familyRank(sizes[i].ID), familyRank(sizes[j].ID)
		if fi != fj {
			return fi < fj
		}
		return sizeRank(sizes[i].ID) < sizeRank(sizes[j].ID)
	})
}

func (a *awsAdapter) MatchCapacityError(string) (string, string, bool) {
	return "", "", false
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func strPtr(s string) *string { return &s }
