package manifest

// HealthPath is probed by both the liveness and the readiness check.
const HealthPath = "/health"

const (
	LivenessInitialDelaySeconds  = 30
	LivenessPeriodSeconds        = 10
	ReadinessInitialDelaySeconds = 5
	ReadinessPeriodSeconds       = 5
)

// ObjectMeta is the metadata block shared by every cluster object.
type ObjectMeta struct {
	Name        string            `yaml:"name,omitempty"`
	Labels      map[string]string `yaml:"labels,omitempty"`
	Annotations map[string]string `yaml:"annotations,omitempty"`
}

// Deployment is an apps/v1 Deployment.
type Deployment struct {
	APIVersion string         `yaml:"apiVersion"`
	Kind       string         `yaml:"kind"`
	Metadata   ObjectMeta     `yaml:"metadata"`
	Spec       DeploymentSpec `yaml:"spec"`
}

// DeploymentSpec holds the replica count and pod template.
type DeploymentSpec struct {
	Replicas int             `yaml:"replicas"`
	Selector LabelSelector   `yaml:"selector"`
	Template PodTemplateSpec `yaml:"template"`
}

// LabelSelector matches pods by label.
type LabelSelector struct {
	MatchLabels map[string]string `yaml:"matchLabels"`
}

// PodTemplateSpec describes the pods a Deployment creates.
type PodTemplateSpec struct {
	Metadata ObjectMeta `yaml:"metadata"`
	Spec     PodSpec    `yaml:"spec"`
}

// PodSpec lists the pod containers.
type PodSpec struct {
	Containers []Container `yaml:"containers"`
}

// Container is the application container with its probes.
type Container struct {
	Name           string          `yaml:"name"`
	Image          string          `yaml:"image"`
	Ports          []ContainerPort `yaml:"ports"`
	Env            []EnvVar        `yaml:"env,omitempty"`
	LivenessProbe  Probe           `yaml:"livenessProbe"`
	ReadinessProbe Probe           `yaml:"readinessProbe"`
}

// ContainerPort is a port exposed by a container.
type ContainerPort struct {
	ContainerPort int `yaml:"containerPort"`
}

// Probe is an HTTP health probe.
type Probe struct {
	HTTPGet             HTTPGetAction `yaml:"httpGet"`
	InitialDelaySeconds int           `yaml:"initialDelaySeconds"`
	PeriodSeconds       int           `yaml:"periodSeconds"`
}

// HTTPGetAction is the request a Probe issues.
type HTTPGetAction struct {
	Path string `yaml:"path"`
	Port int    `yaml:"port"`
}

// Service is a v1 Service.
type Service struct {
	APIVersion string      `yaml:"apiVersion"`
	Kind       string      `yaml:"kind"`
	Metadata   ObjectMeta  `yaml:"metadata"`
	Spec       ServiceSpec `yaml:"spec"`
}

// ServiceSpec routes a port to the selected pods.
type ServiceSpec struct {
	Selector map[string]string `yaml:"selector"`
	Ports    []ServicePort     `yaml:"ports"`
	Type     string            `yaml:"type"`
}

// ServicePort maps a service port to the container port.
type ServicePort struct {
	Port       int `yaml:"port"`
	TargetPort int `yaml:"targetPort"`
}

// Ingress is a networking.k8s.io/v1 Ingress.
type Ingress struct {
	APIVersion string      `yaml:"apiVersion"`
	Kind       string      `yaml:"kind"`
	Metadata   ObjectMeta  `yaml:"metadata"`
	Spec       IngressSpec `yaml:"spec"`
}

// IngressSpec holds TLS settings and host rules.
type IngressSpec struct {
	TLS   []IngressTLS  `yaml:"tls"`
	Rules []IngressRule `yaml:"rules"`
}

// IngressTLS names the certificate secret for hosts.
type IngressTLS struct {
	Hosts      []string `yaml:"hosts"`
	SecretName string   `yaml:"secretName"`
}

// IngressRule routes one host.
type IngressRule struct {
	Host string               `yaml:"host"`
	HTTP HTTPIngressRuleValue `yaml:"http"`
}

// HTTPIngressRuleValue lists the routed paths.
type HTTPIngressRuleValue struct {
	Paths []HTTPIngressPath `yaml:"paths"`
}

// HTTPIngressPath sends a path prefix to a backend.
type HTTPIngressPath struct {
	Path     string         `yaml:"path"`
	PathType string         `yaml:"pathType"`
	Backend  IngressBackend `yaml:"backend"`
}

// IngressBackend is the service an ingress path targets.
type IngressBackend struct {
	Service IngressServiceBackend `yaml:"service"`
}

// IngressServiceBackend names a service and port.
type IngressServiceBackend struct {
	Name string             `yaml:"name"`
	Port ServiceBackendPort `yaml:"port"`
}

// ServiceBackendPort is a service port by number.
type ServiceBackendPort struct {
	Number int `yaml:"number"`
}

func (c Config) appLabels() map[string]string {
	return map[string]string{"app": c.AppName}
}

// RenderDeployment builds the application Deployment with health probes.
func RenderDeployment(c Config) Deployment {
	probe := func(delay, period int) Probe {
		return Probe{
			HTTPGet:             HTTPGetAction{Path: HealthPath, Port: c.Port},
			InitialDelaySeconds: delay,
			PeriodSeconds:       period,
		}
	}

	return Deployment{
		APIVersion: "apps/v1",
		Kind:       "Deployment",
		Metadata:   ObjectMeta{Name: c.AppName},
		Spec: DeploymentSpec{
			Replicas: c.Replicas,
			Selector: LabelSelector{MatchLabels: c.appLabels()},
			Template: PodTemplateSpec{
				Metadata: ObjectMeta{Labels: c.appLabels()},
				Spec: PodSpec{
					Containers: []Container{{
						Name:           c.AppName,
						Image:          c.ImageRef(),
						Ports:          []ContainerPort{{ContainerPort: c.Port}},
						Env:            c.ContainerEnv(),
						LivenessProbe:  probe(LivenessInitialDelaySeconds, LivenessPeriodSeconds),
						ReadinessProbe: probe(ReadinessInitialDelaySeconds, ReadinessPeriodSeconds),
					}},
				},
			},
		},
	}
}

// RenderService exposes the Deployment through a load balancer.
func RenderService(c Config) Service {
	return Service{
		APIVersion: "v1",
		Kind:       "Service",
		Metadata:   ObjectMeta{Name: c.ServiceName()},
		Spec: ServiceSpec{
			Selector: c.appLabels(),
			Ports:    []ServicePort{{Port: c.ServicePort, TargetPort: c.Port}},
			Type:     "LoadBalancer",
		},
	}
}

// RenderIngress routes every request for c.Host to the generated Service and
// declares TLS termination. Certificates are provisioned by the cluster issuer.
func RenderIngress(c Config) Ingress {
	return Ingress{
		APIVersion: "networking.k8s.io/v1",
		Kind:       "Ingress",
		Metadata: ObjectMeta{
			Name: c.IngressName(),
			Annotations: map[string]string{
				"kubernetes.io/ingress.class":    c.IngressClass,
				"cert-manager.io/cluster-issuer": c.ClusterIssuer,
			},
		},
		Spec: IngressSpec{
			TLS: []IngressTLS{{Hosts: []string{c.Host}, SecretName: c.TLSSecret}},
			Rules: []IngressRule{{
				Host: c.Host,
				HTTP: HTTPIngressRuleValue{
					Paths: []HTTPIngressPath{{
						Path:     "/",
						PathType: "Prefix",
						Backend: IngressBackend{
							Service: IngressServiceBackend{
								Name: c.ServiceName(),
								Port: ServiceBackendPort{Number: c.ServicePort},
							},
						},
					}},
				},
			}},
		},
	}
}
