package speech

// Reason is the error code attached to an error callback.
type Reason string

const (
	ReasonNone                 Reason = ""
	ReasonCanceled             Reason = "canceled"
	ReasonInterrupted          Reason = "interrupted"
	ReasonSynthesisUnavailable Reason = "synthesis-unavailable"
	ReasonSynthesisFailed      Reason = "synthesis-failed"
	ReasonLanguageUnavailable  Reason = "language-unavailable"
	ReasonVoiceUnavailable     Reason = "voice-unavailable"
	ReasonTextTooLong          Reason = "text-too-long"
	ReasonInvalidArgument      Reason = "invalid-argument"
	ReasonNotAllowed           Reason = "not-allowed"
	ReasonAudioBusy            Reason = "audio-busy"
	ReasonAudioHardware        Reason = "audio-hardware"
)

// IsCancellation reports whether the reason is the expected result of an
// intentional cancel rather than a failure worth reporting.
func (r Reason) IsCancellation() bool {
	switch r {
	case ReasonNone, ReasonCanceled, ReasonInterrupted:
		return true
	}
	return false
}

// Message returns the user-facing description of the reason.
func (r Reason) Message() string {
	switch r {
	case ReasonSynthesisUnavailable:
		return "Speech synthesis service is unavailable on this device."
	case ReasonSynthesisFailed:
		return "Speech synthesis failed. Please try a different voice."
	case ReasonLanguageUnavailable:
		return "The selected language for narration is not available."
	case ReasonVoiceUnavailable:
		return "The selected voice for narration is not available. Please try another."
	case ReasonTextTooLong:
		return "The current text section is too long to narrate with the selected voice/engine."
	case ReasonInvalidArgument:
		return "Invalid argument for speech synthesis (e.g., invalid speed)."
	case ReasonNotAllowed:
		return "Speech synthesis is not allowed on this device."
	case ReasonAudioBusy:
		return "Audio output is busy. Please try again shortly."
	case ReasonAudioHardware:
		return "A problem occurred with your audio hardware."
	case ReasonNone, ReasonCanceled, ReasonInterrupted:
		return "Narration was interrupted."
	default:
		return "Speech error: " + string(r) + ". Please try again."
	}
}
