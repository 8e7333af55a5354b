// Package security implements SecurityAnalyzer (spec.md §4.6): builds a
// security-group graph from already-discovered SecurityGroup resources,
// classifies each rule's risk, computes SG risk as the max of its rules,
// finds unused groups and SG-references-SG cycles, and rolls up NACL and
// GuardDuty posture signals. It performs no AWS calls of its own — it reads
// the ip_permissions/ip_permissions_egress attributes discovery already
// attached, mirroring NetworkAnalyzer's "pure pass over already-fetched
// resources" shape.
package security

import (
	"sort"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/habhabhabs/inventag-go/internal/model"
)

// sensitivePorts is spec.md §4.6's exact critical-port list.
var sensitivePorts = map[int32]bool{
	22: true, 3389: true, 3306: true, 5432: true, 6379: true,
	1433: true, 9200: true, 27017: true, 5984: true, 11211: true,
}

var rfc1918 = []string{"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"}

// Analyze builds the SecuritySummary from a flat resource list.
// guarddutyBySeverity is SPEC_FULL.md §C.4's posture supplement, passed in
// rather than queried here since GuardDuty findings aren't SG resources.
func Analyze(resources []model.Resource, guarddutyBySeverity map[string]int) model.SecuritySummary {
	var groups []model.SecurityGroup
	refersTo := map[string][]string{}
	associatedBySG := map[string][]string{}
	var nacls []model.NACL

	for _, r := range resources {
		if r.Type != "SecurityGroup" || r.Service != "EC2" {
			continue
		}
		sg := buildGroup(r)
		groups = append(groups, sg)
		for _, rule := range append(append([]model.Rule{}, sg.Inbound...), sg.Outbound...) {
			if isSGRef(rule.SourceOrDestination) {
				refersTo[sg.GroupID] = append(refersTo[sg.GroupID], rule.SourceOrDestination)
			}
		}
	}

	for _, r := range resources {
		if r.Type == "SecurityGroup" || r.Type == "NetworkAcl" {
			continue
		}
		for _, sgID := range r.SecurityGroupIDs {
			associatedBySG[sgID] = append(associatedBySG[sgID], r.Key())
		}
	}

	for i := range groups {
		arns := associatedBySG[groups[i].GroupID]
		sort.Strings(arns)
		groups[i].AssociatedResourceARNs = arns
	}

	for _, r := range resources {
		if r.Type != "NetworkAcl" {
			continue
		}
		count, _ := r.ServiceAttributes["entry_count"].(int)
		nacls = append(nacls, model.NACL{NetworkACLID: r.ID, VPCID: r.VPCID, EntryCount: count})
	}

	sort.Slice(groups, func(i, j int) bool { return groups[i].GroupID < groups[j].GroupID })
	sort.Slice(nacls, func(i, j int) bool { return nacls[i].NetworkACLID < nacls[j].NetworkACLID })

	var unused []string
	for _, g := range groups {
		if len(g.AssociatedResourceARNs) == 0 {
			unused = append(unused, g.GroupID)
		}
	}
	sort.Strings(unused)

	return model.SecuritySummary{
		Groups:              groups,
		UnusedGroupIDs:      unused,
		ReferenceCycles:     detectCycles(refersTo),
		NACLSummary:         nacls,
		GuardDutyBySeverity: guarddutyBySeverity,
	}
}

func buildGroup(r model.Resource) model.SecurityGroup {
	sg := model.SecurityGroup{GroupID: r.ID, Name: r.Name, VPCID: r.VPCID}
	if perms, ok := r.ServiceAttributes["ip_permissions"].([]ec2types.IpPermission); ok {
		sg.Inbound = rulesFromPermissions(perms)
	}
	if perms, ok := r.ServiceAttributes["ip_permissions_egress"].([]ec2types.IpPermission); ok {
		sg.Outbound = rulesFromPermissions(perms)
	}
	var risk model.RiskLevel
	for _, rule := range append(append([]model.Rule{}, sg.Inbound...), sg.Outbound...) {
		risk = model.MaxRisk(risk, rule.RiskAssessment)
	}
	if risk == "" {
		risk = model.RiskLow
	}
	sg.RiskLevel = risk
	return sg
}

func rulesFromPermissions(perms []ec2types.IpPermission) []model.Rule {
	var rules []model.Rule
	for _, p := range perms {
		protocol := aws.ToString(p.IpProtocol)
		portRange := formatPortRange(p.FromPort, p.ToPort)
		for _, ipRange := range p.IpRanges {
			src := aws.ToString(ipRange.CidrIp)
			rules = append(rules, model.Rule{
				Protocol:            protocol,
				PortRange:           portRange,
				SourceOrDestination: src,
				Description:         aws.ToString(ipRange.Description),
				RiskAssessment:      assessRisk(src, p.FromPort, p.ToPort),
			})
		}
		for _, pair := range p.UserIdGroupPairs {
			src := aws.ToString(pair.GroupId)
			rules = append(rules, model.Rule{
				Protocol:            protocol,
				PortRange:           portRange,
				SourceOrDestination: src,
				Description:         aws.ToString(pair.Description),
				RiskAssessment:      model.RiskLow,
			})
		}
	}
	return rules
}

func formatPortRange(from, to *int32) string {
	if from == nil || to == nil {
		return "all"
	}
	if *from == *to {
		return strconv.Itoa(int(*from))
	}
	return strconv.Itoa(int(*from)) + "-" + strconv.Itoa(int(*to))
}

// assessRisk implements spec.md §4.6's rule-risk table exactly.
func assessRisk(source string, from, to *int32) model.RiskLevel {
	rangeHitsSensitivePort := portRangeHitsSensitive(from, to)
	switch {
	case source == "0.0.0.0/0" && rangeHitsSensitivePort:
		return model.RiskCritical
	case source == "0.0.0.0/0":
		return model.RiskHigh
	case isRFC1918(source) && rangeHitsSensitivePort:
		return model.RiskMedium
	default:
		return model.RiskLow
	}
}

func portRangeHitsSensitive(from, to *int32) bool {
	if from == nil || to == nil {
		return true // "all ports" always includes every sensitive port
	}
	for p := range sensitivePorts {
		if p >= *from && p <= *to {
			return true
		}
	}
	return false
}

func isRFC1918(cidr string) bool {
	for _, c := range rfc1918 {
		if cidr == c {
			return true
		}
	}
	return false
}

func isSGRef(s string) bool {
	return len(s) > 3 && s[:3] == "sg-"
}

// detectCycles finds cycles in the SG-references-SG graph via DFS
// three-coloring (white/gray/black), reporting every cycle found rather
// than failing, per spec.md §4.6: "Cycle detection for SG-references-SG
// (report, do not fail)."
func detectCycles(refersTo map[string][]string) [][]string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := map[string]int{}
	var stack []string
	var cycles [][]string

	var visit func(node string)
	visit = func(node string) {
		color[node] = gray
		stack = append(stack, node)
		for _, next := range refersTo[node] {
			switch color[next] {
			case white:
				visit(next)
			case gray:
				cycles = append(cycles, cycleFrom(stack, next))
			}
		}
		stack = stack[:len(stack)-1]
		color[node] = black
	}

	nodes := make([]string, 0, len(refersTo))
	for n := range refersTo {
		nodes = append(nodes, n)
	}
	sort.Strings(nodes)
	for _, n := range nodes {
		if color[n] == white {
			visit(n)
		}
	}
	return cycles
}

func cycleFrom(stack []string, target string) []string {
	for i, n := range stack {
		if n == target {
			cycle := append([]string{}, stack[i:]...)
			return append(cycle, target)
		}
	}
	return nil
}
