// Package network implements NetworkAnalyzer (spec.md §4.5): computes
// VPC/subnet CIDR utilization from already-discovered resources and joins
// resources to their VPC/subnet by id. It issues no further describe calls
// of its own — discovery already produced the VPC/Subnet resources this
// package reads, matching the teacher's preference for pure, in-memory
// analysis passes over the already-fetched resource set (see
// internal/compliance's equivalent split in the teacher's rule evaluators).
package network

import (
	"net"
	"sort"

	"github.com/habhabhabs/inventag-go/internal/model"
)

// Analyze builds the cross-VPC NetworkSummary from a flat resource list.
// configRecorderByRegion is SPEC_FULL.md §C.4's posture supplement: whether
// ConfigService has an active configuration recorder in each region, passed
// in rather than queried here since it isn't a VPC/Subnet fact.
func Analyze(resources []model.Resource, configRecorderByRegion map[string]bool) model.NetworkSummary {
	vpcByID := map[string]*model.VPC{}
	subnetsByVPC := map[string][]model.Subnet{}
	subnetByID := map[string]*model.Subnet{}

	for _, r := range resources {
		if r.Type != "VPC" {
			continue
		}
		cidr, _ := r.ServiceAttributes["cidr_block"].(string)
		total, available := ipCounts(cidr, 2)
		vpcByID[r.ID] = &model.VPC{
			VPCID:        r.ID,
			Name:         r.Name,
			CIDR:         cidr,
			TotalIPs:     total,
			AvailableIPs: available,
		}
	}

	for _, r := range resources {
		if r.Type != "Subnet" {
			continue
		}
		cidr, _ := r.ServiceAttributes["cidr_block"].(string)
		az, _ := r.ServiceAttributes["availability_zone"].(string)
		vpcID, _ := r.ServiceAttributes["vpc_id"].(string)
		total, available := ipCounts(cidr, 5)
		sn := model.Subnet{
			SubnetID:     r.ID,
			Name:         r.Name,
			CIDR:         cidr,
			AZ:           az,
			TotalIPs:     total,
			AvailableIPs: available,
		}
		subnetsByVPC[vpcID] = append(subnetsByVPC[vpcID], sn)
		subnetByID[r.ID] = &sn
	}

	// Join every non-VPC/Subnet resource to its VPC (for associated_resource_arns)
	// and consume one available IP per subnet-attached resource.
	consumedPerSubnet := map[string]int64{}
	vpcAssociations := map[string][]string{}
	for _, r := range resources {
		if r.Type == "VPC" || r.Type == "Subnet" {
			continue
		}
		key := r.Key()
		if r.VPCID != "" {
			vpcAssociations[r.VPCID] = append(vpcAssociations[r.VPCID], key)
		}
		for _, sid := range r.SubnetIDs {
			consumedPerSubnet[sid]++
		}
	}

	for vpcID, sn := range subnetsByVPC {
		for i := range sn {
			sn[i].AvailableIPs -= consumedPerSubnet[sn[i].SubnetID]
			if sn[i].AvailableIPs < 0 {
				sn[i].AvailableIPs = 0
			}
			sn[i].UtilizationPct = utilizationPct(sn[i].TotalIPs, sn[i].AvailableIPs)
		}
		sort.Slice(sn, func(i, j int) bool { return sn[i].SubnetID < sn[j].SubnetID })
		subnetsByVPC[vpcID] = sn
	}

	ids := make([]string, 0, len(vpcByID))
	for id := range vpcByID {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	summary := model.NetworkSummary{ConfigRecorderByReg: configRecorderByRegion}
	for _, id := range ids {
		v := vpcByID[id]
		v.Subnets = subnetsByVPC[id]
		arns := vpcAssociations[id]
		sort.Strings(arns)
		v.AssociatedResourceARNs = arns
		v.UtilizationPct = utilizationPct(v.TotalIPs, v.AvailableIPs)
		summary.VPCs = append(summary.VPCs, *v)
		summary.TotalSubnets += len(v.Subnets)
	}
	summary.TotalVPCs = len(summary.VPCs)
	return summary
}

// ipCounts returns (total, available) host addresses for cidr, reserving
// reserved addresses per spec.md §4.5 (5 for a subnet, 2 for a VPC summary).
// Available starts equal to total; callers subtract consumption afterward.
func ipCounts(cidr string, reserved int64) (total, available int64) {
	_, ipnet, err := net.ParseCIDR(cidr)
	if err != nil {
		return 0, 0
	}
	ones, bits := ipnet.Mask.Size()
	hostBits := bits - ones
	if hostBits < 0 || hostBits > 32 {
		return 0, 0
	}
	raw := int64(1) << uint(hostBits)
	total = raw - reserved
	if total < 0 {
		total = 0
	}
	return total, total
}

func utilizationPct(total, available int64) float64 {
	if total <= 0 {
		return 0
	}
	used := total - available
	if used < 0 {
		used = 0
	}
	return roundTo1(100 * float64(used) / float64(total))
}

func roundTo1(f float64) float64 {
	return float64(int(f*10+0.5)) / 10
}
