package alexa

// DiscoveryPayload is the payload of Discover.Response.
type DiscoveryPayload struct {
	Endpoints []DiscoveryEndpoint `json:"endpoints"`
}

// DiscoveryEndpoint describes one endpoint in a discovery response.
type DiscoveryEndpoint struct {
	EndpointID        string            `json:"endpointId"`
	ManufacturerName  string            `json:"manufacturerName"`
	FriendlyName      string            `json:"friendlyName"`
	Description       string            `json:"description"`
	DisplayCategories []string          `json:"displayCategories"`
	Cookie            map[string]string `json:"cookie,omitempty"`
	Capabilities      []Capability      `json:"capabilities"`
}

// Capability describes one interface in a discovery response.
type Capability struct {
	Type                string                `json:"type"`
	Interface           string                `json:"interface"`
	Instance            string                `json:"instance,omitempty"`
	Version             string                `json:"version"`
	Properties          *CapabilityProperties `json:"properties,omitempty"`
	CapabilityResources *Resources            `json:"capabilityResources,omitempty"`
	Configuration       *ModeConfiguration    `json:"configuration,omitempty"`
	Semantics           *Semantics            `json:"semantics,omitempty"`
}

// CapabilityProperties lists the supported properties of an interface.
type CapabilityProperties struct {
	Supported           []SupportedProperty `json:"supported"`
	ProactivelyReported bool                `json:"proactivelyReported"`
	Retrievable         bool                `json:"retrievable"`
	NonControllable     bool                `json:"nonControllable,omitempty"`
}

// SupportedProperty names a supported property.
type SupportedProperty struct {
	Name string `json:"name"`
}

// Resources holds friendly names for capabilities and modes.
type Resources struct {
	FriendlyNames []FriendlyName `json:"friendlyNames"`
}

// FriendlyName is either a catalog asset or a localized text.
type FriendlyName struct {
	Type  string            `json:"@type"`
	Value FriendlyNameValue `json:"value"`
}

// FriendlyNameValue carries the asset id or text/locale pair.
type FriendlyNameValue struct {
	AssetID string `json:"assetId,omitempty"`
	Text    string `json:"text,omitempty"`
	Locale  string `json:"locale,omitempty"`
}

// AssetName returns a catalog friendly name such as Alexa.Setting.Opening.
func AssetName(assetID string) FriendlyName {
	return FriendlyName{Type: "asset", Value: FriendlyNameValue{AssetID: assetID}}
}

// TextName returns a localized text friendly name.
func TextName(text, locale string) FriendlyName {
	return FriendlyName{Type: "text", Value: FriendlyNameValue{Text: text, Locale: locale}}
}

// ModeConfiguration lists the modes of a ModeController instance.
type ModeConfiguration struct {
	Ordered        bool            `json:"ordered"`
	SupportedModes []SupportedMode `json:"supportedModes"`
}

// SupportedMode is one mode value with its friendly names.
type SupportedMode struct {
	Value         string     `json:"value"`
	ModeResources *Resources `json:"modeResources,omitempty"`
}

// Semantics maps utterances like "open the gate" onto directives and states.
type Semantics struct {
	ActionMappings []ActionMapping `json:"actionMappings,omitempty"`
	StateMappings  []StateMapping  `json:"stateMappings,omitempty"`
}

// ActionMapping maps Alexa.Actions.* onto a directive.
type ActionMapping struct {
	Type      string            `json:"@type"`
	Actions   []string          `json:"actions"`
	Directive SemanticDirective `json:"directive"`
}

// SemanticDirective is the directive an action mapping triggers.
type SemanticDirective struct {
	Name    string `json:"name"`
	Payload any    `json:"payload"`
}

// StateMapping maps Alexa.States.* onto a property value.
type StateMapping struct {
	Type   string   `json:"@type"`
	States []string `json:"states"`
	Value  any      `json:"value"`
}

// BaseCapability is the mandatory first capability of every discovered endpoint.
func BaseCapability() Capability {
	return Capability{
		Type:      CapabilityTypeAlexaInterface,
		Interface: NamespaceAlexa,
		Version:   InterfaceVersion,
	}
}
