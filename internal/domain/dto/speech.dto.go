package dto

type TranscribeRequest struct {
	AudioBase64 string `json:"audio_base64"`
	SampleRate  int    `json:"sample_rate,omitempty"`
}

type TranscriptResult struct {
	Text     string `json:"text"`
	NoSpeech bool   `json:"no_speech,omitempty"`
}

type DialogueMessage struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

type DialogueRequest struct {
	Messages []DialogueMessage `json:"messages"`
}

type DialogueResponse struct {
	Response string `json:"response"`
}

type SynthesizeRequest struct {
	Text string `json:"text"`
}

type SynthesizeResponse struct {
	AudioBase64 string `json:"audio_base64"`
}
