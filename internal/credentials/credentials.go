/*
Copyright (c) 2026 hortator-ai
SPDX-License-Identifier: MIT
*/

// Package credentials resolves the provider API key, either from an
// environment variable or from a Kubernetes Secret.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	ctrl "sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/krishimitra-ai/krishimitra/internal/config"
)

const serviceAccountNamespace = "/var/run/secrets/kubernetes.io/serviceaccount/namespace"

// ErrNoAPIKey is returned when no key could be found.
var ErrNoAPIKey = errors.New("no provider API key configured")

// Resolver looks up the API key. Zero-value fields fall back to the
// process environment and a clientset built from kubeconfig or the
// in-cluster service account.
type Resolver struct {
	Getenv    func(string) string
	Clientset kubernetes.Interface
}

// Resolve returns the API key described by cfg. A Secret reference takes
// precedence over the environment variable.
func Resolve(ctx context.Context, cfg config.ProviderConfig) (string, error) {
	return (&Resolver{}).Resolve(ctx, cfg)
}

// Resolve implements the package-level Resolve with injectable sources.
func (r *Resolver) Resolve(ctx context.Context, cfg config.ProviderConfig) (string, error) {
	if ref := cfg.APIKeySecret; ref != nil {
		return r.fromSecret(ctx, ref)
	}

	getenv := r.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	name := cfg.APIKeyEnv
	if name == "" {
		name = "OPENAI_API_KEY"
	}
	key := strings.TrimSpace(getenv(name))
	if key == "" {
		return "", fmt.Errorf("%w: set %s or provider.api_key_secret", ErrNoAPIKey, name)
	}
	return key, nil
}

func (r *Resolver) fromSecret(ctx context.Context, ref *config.SecretRef) (string, error) {
	log := ctrl.Log.WithName("credentials")

	clientset := r.Clientset
	if clientset == nil {
		var err error
		clientset, err = newClientset(ref.Kubeconfig)
		if err != nil {
			return "", err
		}
	}

	ns := ref.Namespace
	if ns == "" {
		b, err := os.ReadFile(serviceAccountNamespace)
		if err != nil {
			return "", fmt.Errorf("api_key_secret.namespace is empty and no in-cluster namespace is available: %w", err)
		}
		ns = strings.TrimSpace(string(b))
	}

	secret, err := clientset.CoreV1().Secrets(ns).Get(ctx, ref.Name, metav1.GetOptions{})
	if err != nil {
		return "", fmt.Errorf("failed to read secret %s/%s: %w", ns, ref.Name, err)
	}
	value, ok := secret.Data[ref.Key]
	if !ok {
		if s, ok := secret.StringData[ref.Key]; ok {
			value = []byte(s)
		}
	}
	key := strings.TrimSpace(string(value))
	if key == "" {
		return "", fmt.Errorf("%w: secret %s/%s has no key %q", ErrNoAPIKey, ns, ref.Name, ref.Key)
	}
	log.V(1).Info("resolved API key from secret", "namespace", ns, "name", ref.Name, "key", ref.Key)
	return key, nil
}

func newClientset(kubeconfig string) (kubernetes.Interface, error) {
	var cfg *rest.Config
	var err error
	if kubeconfig != "" {
		cfg, err = clientcmd.BuildConfigFromFlags("", kubeconfig)
	} else {
		cfg, err = rest.InClusterConfig()
		if errors.Is(err, rest.ErrNotInCluster) {
			rules := clientcmd.NewDefaultClientConfigLoadingRules()
			cfg, err = clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, &clientcmd.ConfigOverrides{}).ClientConfig()
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build kubeconfig: %w", err)
	}
	clientset, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create k8s clientset: %w", err)
	}
	return clientset, nil
}
