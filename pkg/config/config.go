/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package config

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/viper"
	"k8s.io/klog/v2"
)

// Node represents a remote container engine entry from the NODES list.
type Node struct {
	Host string `json:"host" yaml:"host" mapstructure:"host"` // Engine endpoint, e.g. tcp://10.0.0.2:2375
	GPUs int    `json:"gpus" yaml:"gpus" mapstructure:"gpus"` // Advertised GPU count used for node preference
}

var memoryFormatRe = regexp.MustCompile(`^\d+(\.\d+)?[gGmM]i?$`)

// SetValue sets a configuration value for the specified key.
func SetValue(key string, value any) {
	viper.Set(key, value)
}

// SearchPaths returns the candidate config file locations in lookup order.
func SearchPaths(name string) []string {
	paths := []string{filepath.Join(mustGetwd(), name)}
	if root := findProjectRoot(); root != "" {
		paths = append(paths, filepath.Join(root, name))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".autoscorer", name))
	}
	paths = append(paths, filepath.Join("/etc/autoscorer", name))
	return paths
}

// LoadConfig loads configuration from the given file, or from the first
// config.yaml found along the search path when path is empty. A missing file
// is not an error; defaults and environment variables still apply.
func LoadConfig(path string) error {
	viper.AutomaticEnv()
	if path == "" {
		for _, candidate := range SearchPaths("config.yaml") {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}
	if path == "" {
		klog.Warningf("config.yaml not found, using defaults")
		return nil
	}
	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		return err
	}
	klog.Infof("loaded config from %s", path)
	return nil
}

// ConfigFileUsed returns the path of the loaded config file, if any.
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}

func getString(key, defaultValue string) string {
	if !viper.IsSet(key) {
		return defaultValue
	}
	return viper.GetString(key)
}

func getBool(key string, defaultValue bool) bool {
	if !viper.IsSet(key) {
		return defaultValue
	}
	return viper.GetBool(key)
}

func getInt(key string, defaultValue int) int {
	if !viper.IsSet(key) {
		return defaultValue
	}
	return viper.GetInt(key)
}

func getFloat(key string, defaultValue float64) float64 {
	if !viper.IsSet(key) {
		return defaultValue
	}
	return viper.GetFloat64(key)
}

func getStrings(key string, defaultValue []string) []string {
	if !viper.IsSet(key) {
		return defaultValue
	}
	if vals := viper.GetStringSlice(key); len(vals) > 1 {
		return vals
	}
	val := viper.GetString(key)
	result := removeBlank(strings.Split(val, ","))
	if len(result) == 0 {
		return defaultValue
	}
	return result
}

func removeBlank(slice []string) []string {
	var result []string
	for _, val := range slice {
		if trim := strings.TrimSpace(val); trim != "" {
			result = append(result, trim)
		}
	}
	return result
}

// GetDockerHost returns the configured container engine endpoint.
func GetDockerHost() string {
	return getString(dockerHost, "")
}

// GetImagePullPolicy returns the image pull policy (always|ifnotpresent|never).
func GetImagePullPolicy() string {
	return strings.ToLower(getString(imagePullPolicy, "ifnotpresent"))
}

// GetDefaultCPU returns the default CPU allocation for jobs.
func GetDefaultCPU() float64 {
	return getFloat(defaultCPU, 1.0)
}

// GetDefaultMemory returns the default memory size string for jobs.
func GetDefaultMemory() string {
	return getString(defaultMemory, "2Gi")
}

// GetDefaultGPU returns the default GPU count for jobs.
func GetDefaultGPU() int {
	return getInt(defaultGPU, 0)
}

// GetDefaultShmSize returns the default shared memory size string.
func GetDefaultShmSize() string {
	return getString(defaultShmSize, "1g")
}

// GetTimeout returns the default wall-clock limit in seconds for container runs.
func GetTimeout() int {
	return getInt(timeout, 1800)
}

// GetSecurityOpts returns the container security options.
func GetSecurityOpts() []string {
	return getStrings(securityOpts, []string{"no-new-privileges:true"})
}

// GetRegistryURL returns the image registry endpoint for authentication.
func GetRegistryURL() string {
	return getString(registryURL, "")
}

// GetRegistryUser returns the registry username.
func GetRegistryUser() string {
	return getString(registryUser, "")
}

// GetRegistryPass returns the registry password.
func GetRegistryPass() string {
	return getString(registryPass, "")
}

// IsK8sEnabled returns whether the cluster executor is enabled.
func IsK8sEnabled() bool {
	return getBool(k8sEnabled, false)
}

// GetK8sAPI returns the cluster API server URL.
func GetK8sAPI() string {
	return getString(k8sAPI, "")
}

// GetK8sToken returns the cluster bearer token.
func GetK8sToken() string {
	return getString(k8sToken, "")
}

// GetK8sCACert returns the path of the cluster CA certificate.
func GetK8sCACert() string {
	return getString(k8sCACert, "")
}

// GetK8sNamespace returns the namespace jobs are created in.
func GetK8sNamespace() string {
	return getString(k8sNamespace, "autoscorer")
}

// GetK8sImagePullSecret returns the image pull secret name, if any.
func GetK8sImagePullSecret() string {
	return getString(k8sPullSecret, "")
}

// GetNodes returns the configured container engine nodes.
func GetNodes() []Node {
	var result []Node
	if err := viper.UnmarshalKey(nodes, &result); err != nil {
		klog.ErrorS(err, "failed to parse NODES")
		return nil
	}
	return result
}

// IsDockerNodesEnabled returns whether node preference over NODES is enabled.
func IsDockerNodesEnabled() bool {
	return getBool(dockerNodes, false)
}

// GetBrokerURL returns the async task bus URL.
func GetBrokerURL() string {
	return getString(celeryBroker, "redis://localhost:6379/0")
}

// GetBackendURL returns the async result backend URL.
func GetBackendURL() string {
	return getString(celeryBackend, "redis://localhost:6379/1")
}

// GetTaskDBPath returns the task store location, defaulting under LOG_DIR.
func GetTaskDBPath() string {
	if path := getString(taskDBPath, ""); path != "" {
		return path
	}
	return filepath.Join(GetLogDir(), "task_results.db")
}

// GetLogDir returns the service log directory.
func GetLogDir() string {
	return getString(logDir, "logs")
}

// IsPrintStacktrace returns whether stack traces are printed on unhandled errors.
func IsPrintStacktrace() bool {
	return getBool(printStacktrace, false)
}

// GetServerPort returns the API server port.
func GetServerPort() int {
	return getInt(serverPort, 8000)
}

// GetWorkerConcurrency returns the async worker pool size.
func GetWorkerConcurrency() int {
	return getInt(workerConcurrent, 2)
}

// GetContainerProjectRoot returns the container-visible project root for path translation.
func GetContainerProjectRoot() string {
	return getString(containerProjectRoot, "/app")
}

// GetHostProjectRoot returns the host-visible project root for path translation.
func GetHostProjectRoot() string {
	return getString(hostProjectRoot, "")
}

// GetContainerExamplesRoot returns the container-visible examples root for path translation.
func GetContainerExamplesRoot() string {
	return getString(containerExamplesRoot, "/data/examples")
}

// GetHostExamplesRoot returns the host-visible examples root, derived from the
// host project root when not set explicitly.
func GetHostExamplesRoot() string {
	if root := getString(hostExamplesRoot, ""); root != "" {
		return root
	}
	if project := GetHostProjectRoot(); project != "" {
		return filepath.Join(project, "examples")
	}
	return ""
}

// Validate checks the loaded configuration and returns the list of problems.
func Validate() []string {
	var errs []string
	if host := GetDockerHost(); host != "" &&
		!strings.HasPrefix(host, "unix://") && !strings.HasPrefix(host, "tcp://") {
		errs = append(errs, "DOCKER_HOST must start with unix:// or tcp://")
	}
	if GetDefaultCPU() <= 0 {
		errs = append(errs, "DEFAULT_CPU must be a positive number")
	}
	if mem := GetDefaultMemory(); !memoryFormatRe.MatchString(strings.TrimSpace(mem)) {
		errs = append(errs, "DEFAULT_MEMORY invalid format: "+mem)
	}
	if GetDefaultGPU() < 0 {
		errs = append(errs, "DEFAULT_GPU must be a non-negative integer")
	}
	if GetTimeout() <= 0 {
		errs = append(errs, "TIMEOUT must be a positive integer")
	}
	switch GetImagePullPolicy() {
	case "always", "ifnotpresent", "never":
	default:
		errs = append(errs, "IMAGE_PULL_POLICY must be always, ifnotpresent or never")
	}
	if IsK8sEnabled() {
		api := GetK8sAPI()
		if api == "" {
			errs = append(errs, "K8S_API is required when K8S_ENABLED=true")
		} else if !strings.HasPrefix(api, "https://") {
			errs = append(errs, "K8S_API must be an HTTPS URL")
		}
		if GetK8sNamespace() == "" {
			errs = append(errs, "K8S_NAMESPACE is required when K8S_ENABLED=true")
		}
	}
	return errs
}

// Dump exports the effective configuration with sensitive values masked.
func Dump() map[string]any {
	result := map[string]any{}
	for key, value := range viper.AllSettings() {
		upper := strings.ToUpper(key)
		if sensitiveKeys[upper] {
			if value != nil && value != "" {
				result[upper] = "***"
			} else {
				result[upper] = nil
			}
			continue
		}
		result[upper] = value
	}
	return result
}

func mustGetwd() string {
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}

// findProjectRoot walks up from the working directory looking for go.mod or
// config.yaml, mirroring a repository checkout layout.
func findProjectRoot() string {
	dir := mustGetwd()
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
