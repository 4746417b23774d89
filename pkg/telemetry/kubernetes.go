package telemetry

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/util/homedir"
	metricsv "k8s.io/metrics/pkg/client/clientset/versioned"

	"github.com/opscart/cloud-cost-optimizer/pkg/models"
)

// Cluster workloads are priced from requested capacity.
const (
	cpuCostPerCore   = 23.0
	memoryCostPerGiB = 3.0
)

// KubernetesProvider presents cluster workloads as compute instances:
// one resource per top-level workload, utilization measured against
// requested capacity via metrics-server.
type KubernetesProvider struct {
	clientset     kubernetes.Interface
	metricsClient metricsv.Interface
}

func NewKubernetesProvider() (*KubernetesProvider, error) {
	var kubeconfig string
	if home := homedir.HomeDir(); home != "" {
		kubeconfig = filepath.Join(home, ".kube", "config")
	}

	config, err := clientcmd.BuildConfigFromFlags("", kubeconfig)
	if err != nil {
		return nil, fmt.Errorf("failed to build config: %w", err)
	}

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create clientset: %w", err)
	}

	metricsClient, err := metricsv.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics client: %w", err)
	}

	return NewKubernetesProviderWithClients(clientset, metricsClient), nil
}

func NewKubernetesProviderWithClients(clientset kubernetes.Interface, metricsClient metricsv.Interface) *KubernetesProvider {
	return &KubernetesProvider{
		clientset:     clientset,
		metricsClient: metricsClient,
	}
}

type workloadUsage struct {
	namespace    string
	kind         string
	name         string
	requestedCPU int64 // millicores
	requestedMem int64 // bytes
	actualCPU    int64
	actualMem    int64
}

func (k *KubernetesProvider) ListResources(ctx context.Context, typeFilter models.ResourceType) ([]*models.Resource, error) {
	if typeFilter != "" && typeFilter != models.ResourceComputeInstance {
		return nil, nil
	}

	pods, err := k.clientset.CoreV1().Pods(metav1.NamespaceAll).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list pods: %w", err)
	}

	podMetrics, err := k.metricsClient.MetricsV1beta1().PodMetricses(metav1.NamespaceAll).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get pod metrics: %w", err)
	}

	type usage struct {
		cpu int64
		mem int64
	}
	metricsMap := make(map[string]usage)
	for _, pm := range podMetrics.Items {
		var u usage
		for _, container := range pm.Containers {
			cpu := container.Usage[corev1.ResourceCPU]
			mem := container.Usage[corev1.ResourceMemory]
			u.cpu += cpu.MilliValue()
			u.mem += mem.Value()
		}
		metricsMap[pm.Namespace+"/"+pm.Name] = u
	}

	workloads := make(map[string]*workloadUsage)
	for _, pod := range pods.Items {
		kind, name := topLevelOwner(pod)
		if name == "" {
			continue
		}

		key := pod.Namespace + "/" + kind + "/" + name
		wl, ok := workloads[key]
		if !ok {
			wl = &workloadUsage{namespace: pod.Namespace, kind: kind, name: name}
			workloads[key] = wl
		}

		for _, container := range pod.Spec.Containers {
			if cpu, ok := container.Resources.Requests[corev1.ResourceCPU]; ok {
				wl.requestedCPU += cpu.MilliValue()
			}
			if mem, ok := container.Resources.Requests[corev1.ResourceMemory]; ok {
				wl.requestedMem += mem.Value()
			}
		}

		if u, ok := metricsMap[pod.Namespace+"/"+pod.Name]; ok {
			wl.actualCPU += u.cpu
			wl.actualMem += u.mem
		}
	}

	var out []*models.Resource
	for _, wl := range workloads {
		r := &models.Resource{
			ID:     wl.namespace + "/" + wl.name,
			Type:   models.ResourceComputeInstance,
			Name:   wl.name,
			Region: "cluster",
			Attrs: map[string]string{
				"namespace":     wl.namespace,
				"workload_kind": wl.kind,
			},
		}

		if wl.requestedCPU > 0 {
			pct := float64(wl.actualCPU) / float64(wl.requestedCPU) * 100
			r.Utilization.CPUPercent = &pct
		}
		if wl.requestedMem > 0 {
			pct := float64(wl.actualMem) / float64(wl.requestedMem) * 100
			r.Utilization.MemoryPercent = &pct
		}

		cores := float64(wl.requestedCPU) / 1000.0
		gib := float64(wl.requestedMem) / (1024.0 * 1024.0 * 1024.0)
		if cost := cores*cpuCostPerCore + gib*memoryCostPerGiB; cost > 0 {
			r.Config.MonthlyCost = &cost
		}

		out = append(out, r)
	}

	return out, nil
}

// topLevelOwner resolves a pod to its workload. ReplicaSet owners are
// collapsed to their Deployment by trimming the hash suffix.
func topLevelOwner(pod corev1.Pod) (kind string, name string) {
	if len(pod.OwnerReferences) == 0 {
		return "", ""
	}

	owner := pod.OwnerReferences[0]

	if owner.Kind == "ReplicaSet" {
		rsName := owner.Name
		lastDash := strings.LastIndex(rsName, "-")
		if lastDash > 0 {
			return "Deployment", rsName[:lastDash]
		}
	}

	return owner.Kind, owner.Name
}

func (k *KubernetesProvider) IsAvailable(ctx context.Context) bool {
	_, err := k.clientset.Discovery().ServerVersion()
	return err == nil
}

func (k *KubernetesProvider) Name() string {
	return "kubernetes"
}
