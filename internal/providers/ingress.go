package providers

// IngressEntry builds one element of the models.AttrIngress attribute.
// Ports are inclusive; an all-protocol rule should pass 0 and 65535. The
// shape uses only JSON-native containers so it survives a fixture round trip.
func IngressEntry(protocol string, fromPort, toPort int, cidrs []string) map[string]any {
	list := make([]any, 0, len(cidrs))
	for _, c := range cidrs {
		list = append(list, c)
	}
	return map[string]any{
		"protocol":  protocol,
		"from_port": fromPort,
		"to_port":   toPort,
		"cidrs":     list,
	}
}

// IsWorldCIDR reports whether cidr matches every address of its family.
func IsWorldCIDR(cidr string) bool {
	switch cidr {
	case "0.0.0.0/0", "::/0", "*", "Internet", "Any":
		return true
	}
	return false
}
