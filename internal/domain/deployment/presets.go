package deployment

// DefaultNamespace is the namespace the platform services deploy into.
const DefaultNamespace = "agentic-platform"

// Central-store key names shared by the platform services. The store
// itself lives outside this repository; these constants pin the contract.
const (
	KeyRedisHost              = "REDIS_HOST"
	KeyRedisPort              = "REDIS_PORT"
	KeyRedisPasswordSecretARN = "REDIS_PASSWORD_SECRET_ARN"
	KeyUsagePlansTable        = "DYNAMODB_USAGE_PLANS_TABLE"
	KeyUsageLogsTable         = "DYNAMODB_USAGE_LOGS_TABLE"
	KeyCognitoUserPoolID      = "COGNITO_USER_POOL_ID"
	KeyCognitoUserClientID    = "COGNITO_USER_CLIENT_ID"
	KeyCognitoM2MClientID     = "COGNITO_M2M_CLIENT_ID"
	KeyKnowledgeBaseID        = "KNOWLEDGE_BASE_ID"
	KeyPGReaderEndpoint       = "PG_READER_ENDPOINT"
	KeyPGWriterEndpoint       = "PG_WRITER_ENDPOINT"
	KeyLLMGatewayEndpoint     = "LLM_GATEWAY_ENDPOINT"
	KeyRetrievalGWEndpoint    = "RETRIEVAL_GATEWAY_ENDPOINT"
	KeyMemoryGatewayEndpoint  = "MEMORY_GATEWAY_ENDPOINT"
)

// clusterLocalURL builds the in-cluster DNS URL for a sibling service.
func clusterLocalURL(service, namespace string) string {
	return "http://" + service + "." + namespace + ".svc.cluster.local"
}

// BuiltinValues returns the deployment values for all platform services.
func BuiltinValues() []Values {
	return []Values{
		llmGateway(),
		retrievalGateway(),
		memoryGateway(),
		agenticChat(),
	}
}

// ValuesFor returns the preset for a single service, or ok=false.
func ValuesFor(serviceName string) (Values, bool) {
	for _, v := range BuiltinValues() {
		if v.ServiceName == serviceName {
			return v, true
		}
	}
	return Values{}, false
}

func baseValues(name string) Values {
	return Values{
		ServiceName:  name,
		Namespace:    DefaultNamespace,
		ReplicaCount: 2,
		Image: Image{
			Repository: name,
			Tag:        DefaultImageTag,
			PullPolicy: "Always",
		},
		Service: Service{
			Type:       "ClusterIP",
			Port:       80,
			TargetPort: 8000,
		},
		Resources: Resources{
			Requests: ResourceList{CPU: "250m", Memory: "512Mi"},
			Limits:   ResourceList{CPU: "500m", Memory: "1Gi"},
		},
		Ingress: Ingress{Enabled: true, Path: "/" + name},
		ServiceAccount: ServiceAccount{
			Name:         name,
			Create:       true,
			IRSARoleName: IRSARoleName(name),
		},
	}
}

func llmGateway() Values {
	v := baseValues("llm-gateway")
	v.ConfigKeys = []string{
		KeyRedisHost,
		KeyRedisPort,
		KeyRedisPasswordSecretARN,
		KeyUsagePlansTable,
		KeyUsageLogsTable,
		KeyCognitoUserPoolID,
		KeyCognitoUserClientID,
		KeyCognitoM2MClientID,
	}
	return v
}

func retrievalGateway() Values {
	v := baseValues("retrieval-gateway")
	v.ReplicaCount = 1
	v.ConfigKeys = []string{
		KeyKnowledgeBaseID,
		KeyCognitoUserPoolID,
		KeyCognitoM2MClientID,
	}
	return v
}

func memoryGateway() Values {
	v := baseValues("memory-gateway")
	v.ReplicaCount = 1
	v.ConfigKeys = []string{
		KeyPGReaderEndpoint,
		KeyPGWriterEndpoint,
		KeyCognitoUserPoolID,
		KeyCognitoM2MClientID,
		KeyLLMGatewayEndpoint,
	}
	v.ConfigDefaults = map[string]string{
		KeyLLMGatewayEndpoint: clusterLocalURL("llm-gateway", v.Namespace),
	}
	return v
}

// agenticChat is the orchestrator. Its gateway endpoints default to the
// sibling services' in-cluster DNS names so a fresh environment works
// before the central store carries explicit endpoints.
func agenticChat() Values {
	v := baseValues("agentic-chat")
	v.ConfigKeys = []string{
		KeyLLMGatewayEndpoint,
		KeyRetrievalGWEndpoint,
		KeyMemoryGatewayEndpoint,
		KeyCognitoUserPoolID,
		KeyCognitoM2MClientID,
	}
	v.ConfigDefaults = map[string]string{
		KeyLLMGatewayEndpoint:    clusterLocalURL("llm-gateway", v.Namespace),
		KeyRetrievalGWEndpoint:   clusterLocalURL("retrieval-gateway", v.Namespace),
		KeyMemoryGatewayEndpoint: clusterLocalURL("memory-gateway", v.Namespace),
	}
	return v
}
