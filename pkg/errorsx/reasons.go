package errorsx

// ReasonCode is a short machine-readable error reason.
type ReasonCode string

const (
	ReasonUnknown ReasonCode = "unknown"

	ReasonValidation ReasonCode = "validation"

	ReasonSTTTranscribe  ReasonCode = "stt_transcribe"
	ReasonSTTRateLimit   ReasonCode = "stt_rate_limit"
	ReasonSTTCircuitOpen ReasonCode = "stt_circuit_open"

	ReasonTTSConnect     ReasonCode = "tts_connect"
	ReasonTTSSynthesize  ReasonCode = "tts_synthesize"
	ReasonTTSRateLimit   ReasonCode = "tts_rate_limit"
	ReasonTTSCircuitOpen ReasonCode = "tts_circuit_open"

	ReasonNLURecognize ReasonCode = "nlu_recognize"

	ReasonAudioUnsupported ReasonCode = "audio_unsupported"
	ReasonAudioChunking    ReasonCode = "audio_chunking"
	ReasonAudioEncode      ReasonCode = "audio_encode"

	ReasonPersistence ReasonCode = "persistence"

	ReasonMediaFetch                ReasonCode = "media_fetch"
	ReasonTransportInvalidSignature ReasonCode = "webhook_invalid_signature"
	ReasonTransportSend             ReasonCode = "transport_send"
)
