package application

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	sourceDevice  = "device"
	sourceSigner  = "signer"
	sourceManual  = "manual"
	resultSuccess = "success"
	resultFailure = "failure"
	opListDevices = "list_devices"
	opGetXpub     = "get_xpub"
	opRegister    = "register_wallet"
	metricsPrefix = "vault"
)

var (
	keyImports = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsPrefix,
		Name:      "key_imports_total",
		Help:      "Number of keys imported into a key slot, by source.",
	}, []string{"source"})

	deviceErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsPrefix,
		Name:      "device_errors_total",
		Help:      "Number of failed device operations, by operation.",
	}, []string{"operation"})

	walletRegistrations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsPrefix,
		Name:      "wallet_registrations_total",
		Help:      "Number of wallet registration attempts, by result.",
	}, []string{"result"})

	descriptorAssemblies = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsPrefix,
		Name:      "descriptor_assemblies_total",
		Help:      "Number of descriptor assembly attempts, by result.",
	}, []string{"result"})
)
