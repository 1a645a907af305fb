package lambdautils

import (
	"context"
	"io"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/client"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/ec2"
	"github.com/aws/aws-sdk-go/service/ec2/ec2iface"
	"github.com/pkg/errors"
)

// DefaultCheckIPURL answers with the caller's public ip address.
const DefaultCheckIPURL = "https://checkip.amazonaws.com"

// Heartbeat sources.
const (
	SourceNetworkInterfaces = "ec2:DescribeNetworkInterfaces"
	SourceCheckIP           = "checkip"
)

// HeartbeatResult is the outcome of a keep-warm invocation.
type HeartbeatResult struct {
	Source    string    `json:"source"`
	Addresses []string  `json:"addresses"`
	CheckedAt time.Time `json:"checkedAt"`
}

// Heartbeat resolves the public address the function egresses from. A vpc
// attached function with an elastic ip is looked up through its lambda network
// interfaces when the security group and subnet are known, otherwise the
// CheckIPURL is asked.
type Heartbeat struct {
	Region          string
	SecurityGroupID string
	SubnetID        string
	CheckIPURL      string

	httpClient *http.Client
	nowFunc    func() time.Time
	svcFunc    func(client.ConfigProvider) ec2iface.EC2API
}

// NewHeartbeat returns a Heartbeat. An empty checkIPURL uses
// DefaultCheckIPURL and a nil httpClient uses a client with a 10 second
// timeout.
func NewHeartbeat(region, securityGroupID, subnetID, checkIPURL string, httpClient *http.Client) *Heartbeat {
	if checkIPURL == "" {
		checkIPURL = DefaultCheckIPURL
	}

	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	return &Heartbeat{
		Region:          region,
		SecurityGroupID: securityGroupID,
		SubnetID:        subnetID,
		CheckIPURL:      checkIPURL,
		httpClient:      httpClient,
	}
}

func (hb *Heartbeat) now() time.Time {
	if hb.nowFunc != nil {
		return hb.nowFunc()
	}

	return time.Now()
}

func (hb *Heartbeat) svc(p client.ConfigProvider) ec2iface.EC2API {
	if hb.svcFunc != nil {
		return hb.svcFunc(p)
	}

	return ec2.New(p)
}

// Resolve looks up the public addresses of the function.
func (hb *Heartbeat) Resolve(ctx context.Context) (HeartbeatResult, error) {
	var (
		source    string
		addresses []string
		err       error
	)

	if hb.SecurityGroupID != "" && hb.SubnetID != "" {
		source = SourceNetworkInterfaces
		addresses, err = hb.fromNetworkInterfaces(ctx)
	} else {
		source = SourceCheckIP
		addresses, err = hb.fromCheckIP(ctx)
	}

	if err != nil {
		return HeartbeatResult{}, err
	}

	return HeartbeatResult{
		Source:    source,
		Addresses: addresses,
		CheckedAt: hb.now().UTC(),
	}, nil
}

// describeInput selects the network interfaces lambda created for the
// configured security group in the configured subnet.
func (hb *Heartbeat) describeInput() *ec2.DescribeNetworkInterfacesInput {
	return &ec2.DescribeNetworkInterfacesInput{
		Filters: []*ec2.Filter{
			{Name: aws.String("interface-type"), Values: aws.StringSlice([]string{"lambda"})},
			{Name: aws.String("group-id"), Values: aws.StringSlice([]string{hb.SecurityGroupID})},
			{Name: aws.String("subnet-id"), Values: aws.StringSlice([]string{hb.SubnetID})},
		},
	}
}

func (hb *Heartbeat) fromNetworkInterfaces(ctx context.Context) ([]string, error) {
	s, err := session.NewSession(&aws.Config{
		Region: aws.String(hb.Region),
	})

	if err != nil {
		return nil, errors.Wrap(err, "failed getting session")
	}

	out, err := hb.svc(s).DescribeNetworkInterfacesWithContext(ctx, hb.describeInput())
	if err != nil {
		return nil, errors.Wrapf(err, "failed describing lambda network interfaces in %v", hb.SubnetID)
	}

	seen := map[string]bool{}
	addresses := []string{}
	for _, ni := range out.NetworkInterfaces {
		if ni.Association == nil {
			continue
		}

		ip := aws.StringValue(ni.Association.PublicIp)
		if ip == "" || seen[ip] {
			continue
		}

		seen[ip] = true
		addresses = append(addresses, ip)
	}

	if len(addresses) == 0 {
		return nil, errors.Errorf("no public address associated with lambda interfaces in %v", hb.SubnetID)
	}

	sort.Strings(addresses)
	return addresses, nil
}

func (hb *Heartbeat) fromCheckIP(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, hb.CheckIPURL, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "failed building request for %v", hb.CheckIPURL)
	}

	resp, err := hb.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "failed calling %v", hb.CheckIPURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("unexpected status %d from %v", resp.StatusCode, hb.CheckIPURL)
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, 256))
	if err != nil {
		return nil, errors.Wrapf(err, "failed reading %v", hb.CheckIPURL)
	}

	ip := strings.TrimSpace(string(b))
	if net.ParseIP(ip) == nil {
		return nil, errors.Errorf("'%s' from %v is not an ip address", ip, hb.CheckIPURL)
	}

	return []string{ip}, nil
}
