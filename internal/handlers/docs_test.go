package handlers

import (
	"encoding/json"
	"regexp"
	"strings"
	"testing"

	"bombona_tracker/docs"
	"bombona_tracker/internal/service"
)

var ginParam = regexp.MustCompile(`:(\w+)`)

func TestSwaggerDoc_CoversEveryRoute(t *testing.T) {
	var doc struct {
		Paths map[string]map[string]json.RawMessage `json:"paths"`
	}
	if err := json.Unmarshal([]byte(docs.SwaggerInfo.ReadDoc()), &doc); err != nil {
		t.Fatalf("swagger doc is not valid JSON: %v", err)
	}

	r := newTestRouter(&service.Service{})
	for _, rt := range r.Routes() {
		if strings.HasPrefix(rt.Path, "/swagger/") {
			continue
		}
		path := ginParam.ReplaceAllString(rt.Path, "{$1}")
		ops, ok := doc.Paths[path]
		if !ok {
			t.Errorf("route %s %s is not documented", rt.Method, path)
			continue
		}
		if _, ok := ops[strings.ToLower(rt.Method)]; !ok {
			t.Errorf("route %s %s has no documented operation", rt.Method, path)
		}
	}
}
