package alexa

// Interface namespaces. These strings are fixed by the protocol.
const (
	NamespaceAlexa               = "Alexa"
	NamespaceDiscovery           = "Alexa.Discovery"
	NamespacePowerController     = "Alexa.PowerController"
	NamespaceBrightness          = "Alexa.BrightnessController"
	NamespacePercentage          = "Alexa.PercentageController"
	NamespaceSpeaker             = "Alexa.Speaker"
	NamespaceModeController      = "Alexa.ModeController"
	NamespaceLockController      = "Alexa.LockController"
	NamespaceTemperatureSensor   = "Alexa.TemperatureSensor"
	NamespaceEndpointHealth      = "Alexa.EndpointHealth"
	InterfaceVersion             = "3"
	PayloadVersion               = "3"
	CapabilityTypeAlexaInterface = "AlexaInterface"
)

// Directive and event names.
const (
	NameDiscover         = "Discover"
	NameDiscoverResponse = "Discover.Response"
	NameReportState      = "ReportState"
	NameStateReport      = "StateReport"
	NameResponse         = "Response"
	NameErrorResponse    = "ErrorResponse"
	NameChangeReport     = "ChangeReport"
	NameTurnOn           = "TurnOn"
	NameTurnOff          = "TurnOff"
	NameSetBrightness    = "SetBrightness"
	NameAdjustBrightness = "AdjustBrightness"
	NameSetPercentage    = "SetPercentage"
	NameAdjustPercentage = "AdjustPercentage"
	NameSetVolume        = "SetVolume"
	NameAdjustVolume     = "AdjustVolume"
	NameSetMute          = "SetMute"
	NameSetMode          = "SetMode"
	NameLock             = "Lock"
	NameUnlock           = "Unlock"
)

// Display categories used in discovery.
const (
	CategoryLight             = "LIGHT"
	CategoryExteriorBlind     = "EXTERIOR_BLIND"
	CategoryGarageDoor        = "GARAGE_DOOR"
	CategorySpeaker           = "SPEAKER"
	CategorySmartPlug         = "SMARTPLUG"
	CategorySmartLock         = "SMARTLOCK"
	CategoryTemperatureSensor = "TEMPERATURE_SENSOR"
	CategoryOther             = "OTHER"
)

// CauseType tags a change report with what triggered it.
type CauseType string

const (
	CauseVoiceInteraction    CauseType = "VOICE_INTERACTION"
	CausePhysicalInteraction CauseType = "PHYSICAL_INTERACTION"
	CauseAppInteraction      CauseType = "APP_INTERACTION"
	CausePeriodicPoll        CauseType = "PERIODIC_POLL"
)
