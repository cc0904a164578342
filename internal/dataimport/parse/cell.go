package parse

import "strings"

// cell is the syntactic form [namespace:]name[<type>].
type cell struct {
	namespace *string
	name      string
	typeToken *string
}

func splitType(raw string) (string, *string) {
	if !strings.HasSuffix(raw, ">") {
		return raw, nil
	}
	open := strings.LastIndex(raw, "<")
	if open < 0 {
		return raw, nil
	}
	token := raw[open+1 : len(raw)-1]
	if token == "" || strings.ContainsAny(token, "<>") {
		return raw, nil
	}
	return raw[:open], &token
}

func splitNamespace(raw string) (*string, string) {
	idx := strings.Index(raw, ":")
	if idx <= 0 {
		return nil, raw
	}
	ns := raw[:idx]
	return &ns, raw[idx+1:]
}

func parseCell(raw string) cell {
	rest, token := splitType(raw)
	ns, name := splitNamespace(rest)
	return cell{namespace: ns, name: name, typeToken: token}
}
