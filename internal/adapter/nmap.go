package adapter

import (
	"context"
	"encoding/xml"
	"fmt"
	"time"

	"github.com/secaudit/secaudit/internal/finding"
)

// nmapTableVersion tracks the nmap severity-mapping table. Bump when the
// mapping changes so stored reports stay comparable.
const nmapTableVersion = "nmap/1"

// management ports that should never be internet-facing
var nmapManagementPorts = map[string]string{
	"23":   "telnet",
	"3389": "rdp",
	"5900": "vnc",
	"5901": "vnc",
}

// Nmap wraps the nmap port scanner. It requests XML output on stdout
// (-oX -) and maps open ports to network-exposure findings.
type Nmap struct {
	Binary string
}

// NewNmap builds the nmap adapter. Binary defaults to "nmap".
func NewNmap(binary string) *Nmap {
	if binary == "" {
		binary = "nmap"
	}
	return &Nmap{Binary: binary}
}

func (n *Nmap) Name() string         { return "nmap" }
func (n *Nmap) Tool() string         { return n.Binary }
func (n *Nmap) TableVersion() string { return nmapTableVersion }

func (n *Nmap) Run(ctx context.Context, target finding.Target, timeout time.Duration) (*RawResult, error) {
	args := []string{"-F", target.Identifier, "-oX", "-"}
	if target.Ports != "" {
		args = []string{"-p", target.Ports, target.Identifier, "-oX", "-"}
	}

	raw, err := execTool(ctx, timeout, n.Binary, args...)
	if err != nil {
		return nil, err
	}
	// nmap exits non-zero only on genuine failure (bad args, resolution
	// errors); open ports do not change the exit status.
	if raw.ExitCode != 0 {
		return raw, fmt.Errorf("%w: nmap exited %d", ErrNonZeroExit, raw.ExitCode)
	}
	return raw, nil
}

type nmapRun struct {
	Hosts []nmapHost `xml:"host"`
}

type nmapHost struct {
	Addresses []nmapAddress `xml:"address"`
	Ports     nmapPorts     `xml:"ports"`
}

type nmapAddress struct {
	Addr     string `xml:"addr,attr"`
	AddrType string `xml:"addrtype,attr"`
}

type nmapPorts struct {
	Ports []nmapPort `xml:"port"`
}

type nmapPort struct {
	PortID   string      `xml:"portid,attr"`
	Protocol string      `xml:"protocol,attr"`
	State    nmapState   `xml:"state"`
	Service  nmapService `xml:"service"`
}

type nmapState struct {
	State string `xml:"state,attr"`
}

type nmapService struct {
	Name string `xml:"name,attr"`
}

func (n *Nmap) Parse(target finding.Target, raw *RawResult) ([]finding.Finding, error) {
	var run nmapRun
	if err := xml.Unmarshal(raw.Stdout, &run); err != nil {
		return nil, fmt.Errorf("parse nmap xml: %w", err)
	}

	var findings []finding.Finding
	for _, host := range run.Hosts {
		for _, port := range host.Ports.Ports {
			if port.State.State != "open" {
				continue
			}

			severity := finding.SeverityLow
			remediation := fmt.Sprintf("Verify port %s needs to be exposed; restrict access with firewall rules otherwise.", port.PortID)
			if svc, ok := nmapManagementPorts[port.PortID]; ok {
				severity = finding.SeverityHigh
				remediation = fmt.Sprintf("Management service %s should not be reachable from audit networks; close port %s or move it behind a VPN.", svc, port.PortID)
			}

			desc := fmt.Sprintf("port %s/%s open", port.PortID, port.Protocol)
			if port.Service.Name != "" {
				desc = fmt.Sprintf("port %s/%s open (%s)", port.PortID, port.Protocol, port.Service.Name)
			}

			findings = append(findings, finding.Finding{
				Target:      target.Identifier,
				Adapter:     n.Name(),
				Severity:    severity,
				Category:    finding.CategoryNetworkExposure,
				Description: desc,
				Remediation: remediation,
			})
		}
	}

	return findings, nil
}
