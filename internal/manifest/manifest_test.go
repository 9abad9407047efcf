package manifest

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/joho/godotenv"
	"github.com/nholik/wolfpy-pipeline/internal/failure"
	"gopkg.in/yaml.v3"
)

func TestRenderDeployment_Idempotent(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Env = []EnvVar{{Name: "SECRET_KEY", Value: "s3cr3t"}}

	a := RenderDeployment(cfg)
	b := RenderDeployment(cfg)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("expected identical descriptors")
	}

	encA, err := Encode(a)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	encB, err := Encode(b)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !bytes.Equal(encA, encB) {
		t.Fatalf("expected byte-identical encodings")
	}
}

func TestRenderDeployment_Structure(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Tag = "1.3.0"
	d := RenderDeployment(cfg)

	if d.Kind != "Deployment" || d.APIVersion != "apps/v1" {
		t.Fatalf("unexpected kind %s/%s", d.APIVersion, d.Kind)
	}
	if d.Spec.Replicas != 3 {
		t.Fatalf("expected 3 replicas, got %d", d.Spec.Replicas)
	}
	if !reflect.DeepEqual(d.Spec.Selector.MatchLabels, d.Spec.Template.Metadata.Labels) {
		t.Fatalf("selector must match template labels")
	}
	if len(d.Spec.Template.Spec.Containers) != 1 {
		t.Fatalf("expected a single container")
	}

	c := d.Spec.Template.Spec.Containers[0]
	if c.Image != "wolfpy-app:1.3.0" {
		t.Fatalf("unexpected image %s", c.Image)
	}
	if c.Ports[0].ContainerPort != 8000 {
		t.Fatalf("unexpected container port %d", c.Ports[0].ContainerPort)
	}
	wantEnv := []EnvVar{{"WOLFPY_ENV", "production"}, {"PORT", "8000"}}
	if !reflect.DeepEqual(c.Env, wantEnv) {
		t.Fatalf("unexpected env %v", c.Env)
	}

	wantLiveness := Probe{HTTPGet: HTTPGetAction{Path: "/health", Port: 8000}, InitialDelaySeconds: 30, PeriodSeconds: 10}
	wantReadiness := Probe{HTTPGet: HTTPGetAction{Path: "/health", Port: 8000}, InitialDelaySeconds: 5, PeriodSeconds: 5}
	if c.LivenessProbe != wantLiveness {
		t.Fatalf("unexpected liveness probe %+v", c.LivenessProbe)
	}
	if c.ReadinessProbe != wantReadiness {
		t.Fatalf("unexpected readiness probe %+v", c.ReadinessProbe)
	}
}

func TestContainerEnv_ConfigDoesNotOverrideReservedNames(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Env = []EnvVar{{"PORT", "9999"}, {"REDIS_URL", "redis://cache:6379/0"}}

	env := cfg.ContainerEnv()
	if len(env) != 3 || env[1].Value != "8000" || env[2].Name != "REDIS_URL" {
		t.Fatalf("unexpected env %v", env)
	}
}

func TestRenderService(t *testing.T) {
	s := RenderService(DefaultConfig())

	if s.Metadata.Name != "wolfpy-service" {
		t.Fatalf("unexpected name %s", s.Metadata.Name)
	}
	if s.Spec.Type != "LoadBalancer" {
		t.Fatalf("unexpected type %s", s.Spec.Type)
	}
	if s.Spec.Ports[0] != (ServicePort{Port: 80, TargetPort: 8000}) {
		t.Fatalf("unexpected ports %+v", s.Spec.Ports)
	}
	if s.Spec.Selector["app"] != "wolfpy-app" {
		t.Fatalf("selector must target the deployment")
	}
}

func TestRenderIngress_SingleRuleToService(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Host = "wolfpy.example.com"
	ing := RenderIngress(cfg)

	if len(ing.Spec.Rules) != 1 || len(ing.Spec.Rules[0].HTTP.Paths) != 1 {
		t.Fatalf("expected exactly one host/path rule")
	}
	rule := ing.Spec.Rules[0]
	if rule.Host != "wolfpy.example.com" {
		t.Fatalf("unexpected host %s", rule.Host)
	}
	path := rule.HTTP.Paths[0]
	if path.Path != "/" || path.PathType != "Prefix" {
		t.Fatalf("unexpected path %+v", path)
	}
	svc := RenderService(cfg)
	if path.Backend.Service.Name != svc.Metadata.Name || path.Backend.Service.Port.Number != svc.Spec.Ports[0].Port {
		t.Fatalf("backend must route to the generated service: %+v", path.Backend)
	}
	if len(ing.Spec.TLS) != 1 || ing.Spec.TLS[0].Hosts[0] != "wolfpy.example.com" || ing.Spec.TLS[0].SecretName != "wolfpy-tls" {
		t.Fatalf("unexpected tls %+v", ing.Spec.TLS)
	}
	if ing.Metadata.Annotations["cert-manager.io/cluster-issuer"] != "letsencrypt-prod" {
		t.Fatalf("missing cluster issuer annotation")
	}
}

func TestRenderCompose_Topology(t *testing.T) {
	f := RenderCompose(DefaultConfig())

	if len(f.Services) != 3 {
		t.Fatalf("expected three services, got %d", len(f.Services))
	}
	web, ok := f.Services[AppService]
	if !ok {
		t.Fatalf("missing app service")
	}
	if !reflect.DeepEqual(web.DependsOn, []string{CacheService, StoreService}) {
		t.Fatalf("app must depend on cache and store, got %v", web.DependsOn)
	}
	if !reflect.DeepEqual(web.Ports, []string{"80:8000"}) {
		t.Fatalf("unexpected ports %v", web.Ports)
	}
	if f.Services[CacheService].Image != "redis:7-alpine" || f.Services[StoreService].Image != "postgres:15-alpine" {
		t.Fatalf("unexpected backing images")
	}
	if _, ok := f.Volumes["postgres_data"]; !ok {
		t.Fatalf("missing store volume")
	}
	if err := ValidatePorts(f); err != nil {
		t.Fatalf("ports should be valid: %v", err)
	}
}

func TestRenderCompose_DependencyIsNotOptional(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Compose.CacheImage = "valkey/valkey:8"
	cfg.Compose.PublishPort = 8080

	web := RenderCompose(cfg).Services[AppService]
	if !reflect.DeepEqual(web.DependsOn, []string{CacheService, StoreService}) {
		t.Fatalf("dependency order changed with parameters: %v", web.DependsOn)
	}
	if web.Ports[0] != "8080:8000" {
		t.Fatalf("unexpected published port %s", web.Ports[0])
	}
}

func TestRenderCompose_AppEnvironmentFollowsConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Port = 9000
	cfg.Env = []EnvVar{{Name: "SECRET_KEY", Value: "s"}}

	f := RenderCompose(cfg)
	data, err := Encode(f)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var doc struct {
		Services map[string]struct {
			Ports       []string `yaml:"ports"`
			Environment []string `yaml:"environment"`
		} `yaml:"services"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	web := doc.Services[AppService]
	if !reflect.DeepEqual(web.Ports, []string{"80:9000"}) {
		t.Fatalf("unexpected ports %v", web.Ports)
	}
	want := []string{"WOLFPY_ENV=production", "PORT=9000", "SECRET_KEY=s", "DEBUG=False"}
	if !reflect.DeepEqual(web.Environment, want) {
		t.Fatalf("expected environment %v, got %v", want, web.Environment)
	}

	cfg.Env = append(cfg.Env, EnvVar{Name: "DEBUG", Value: "True"})
	env := RenderCompose(cfg).Services[AppService].Environment
	if env[len(env)-1] != "DEBUG=True" {
		t.Fatalf("configured DEBUG should win, got %v", env)
	}
}

func TestEncodeCompose_YAMLShape(t *testing.T) {
	data, err := Encode(RenderCompose(DefaultConfig()))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc["version"] != "3.8" {
		t.Fatalf("unexpected version %v", doc["version"])
	}
	volumes, ok := doc["volumes"].(map[string]any)
	if !ok {
		t.Fatalf("volumes missing: %s", data)
	}
	if v, present := volumes["postgres_data"]; !present || v != nil {
		t.Fatalf("expected empty postgres_data volume, got %v", v)
	}
	if !strings.Contains(string(data), "\n  web:\n") {
		t.Fatalf("expected two-space indentation:\n%s", data)
	}
}

func TestValidatePortMapping(t *testing.T) {
	for _, ok := range []string{"80:8000", "8000:8000", "127.0.0.1:8080:8000"} {
		if err := ValidatePortMapping(ok); err != nil {
			t.Errorf("%s: unexpected error %v", ok, err)
		}
	}
	for _, bad := range []string{"eighty:8000", "80:99999", ""} {
		if err := ValidatePortMapping(bad); err == nil {
			t.Errorf("%q: expected error", bad)
		}
	}
}

func TestRenderEnvTemplate_Parses(t *testing.T) {
	env, err := godotenv.Unmarshal(RenderEnvTemplate())
	if err != nil {
		t.Fatalf("template should parse as an env file: %v", err)
	}
	if env["PORT"] != "8000" || env["WOLFPY_ENV"] != "production" {
		t.Fatalf("unexpected values %v", env)
	}
	if v, ok := env["SSL_CERTFILE"]; !ok || v != "" {
		t.Fatalf("expected blank SSL_CERTFILE default, got %q", v)
	}
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}

	cfg := DefaultConfig()
	cfg.Image = ""
	cfg.Replicas = 0
	cfg.Port = 70000
	cfg.Env = []EnvVar{{Name: "BAD NAME"}}

	err := cfg.Validate()
	var verr *failure.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(verr.Problems) != 4 {
		t.Fatalf("expected 4 problems, got %v", verr.Problems)
	}
}

func TestClusterFiles(t *testing.T) {
	files, err := ClusterFiles(DefaultConfig(), "k8s")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	want := []string{"k8s/deployment.yaml", "k8s/service.yaml", "k8s/ingress.yaml"}
	for i, f := range files {
		if f.Path != want[i] {
			t.Fatalf("unexpected path %s", f.Path)
		}
		if len(f.Data) == 0 {
			t.Fatalf("%s is empty", f.Path)
		}
	}
}

func TestPlatformFiles(t *testing.T) {
	if RenderProcfile() != "web: gunicorn --config gunicorn.conf.py app:app\n" {
		t.Fatalf("unexpected Procfile %q", RenderProcfile())
	}
	if RenderRuntime("python-3.11.6") != "python-3.11.6\n" {
		t.Fatalf("unexpected runtime")
	}
}
