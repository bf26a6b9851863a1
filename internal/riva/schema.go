package riva

import (
	"fmt"
	"sync"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"
)

const (
	servicePath        = "nvidia.riva.asr.RivaSpeechRecognition"
	streamingMethod    = "StreamingRecognize"
	streamingRecognize = "/" + servicePath + "/" + streamingMethod

	encodingLinearPCM = 1
	sampleRateHertz   = 16000
)

// schema holds the StreamingRecognize message subset, resolved at runtime
// from a hand-written descriptor that is wire-compatible with riva_asr.proto.
type schema struct {
	request           protoreflect.MessageDescriptor
	response          protoreflect.MessageDescriptor
	streamingConfig   protoreflect.MessageDescriptor
	recognitionConfig protoreflect.MessageDescriptor
	speechContext     protoreflect.MessageDescriptor
	recognitionResult protoreflect.MessageDescriptor
	recognitionAltern protoreflect.MessageDescriptor
}

var (
	schemaOnce sync.Once
	schemaVal  *schema
	schemaErr  error
)

func loadSchema() (*schema, error) {
	schemaOnce.Do(func() {
		file, err := protodesc.NewFile(fileDescriptor(), new(protoregistry.Files))
		if err != nil {
			schemaErr = fmt.Errorf("build riva asr descriptor: %w", err)
			return
		}
		messages := file.Messages()
		schemaVal = &schema{
			request:           messages.ByName("StreamingRecognizeRequest"),
			response:          messages.ByName("StreamingRecognizeResponse"),
			streamingConfig:   messages.ByName("StreamingRecognitionConfig"),
			recognitionConfig: messages.ByName("RecognitionConfig"),
			speechContext:     messages.ByName("SpeechContext"),
			recognitionResult: messages.ByName("StreamingRecognitionResult"),
			recognitionAltern: messages.ByName("SpeechRecognitionAlternative"),
		}
	})
	return schemaVal, schemaErr
}

func fileDescriptor() *descriptorpb.FileDescriptorProto {
	optional := descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum()
	repeated := descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()

	scalar := func(name string, number int32, kind descriptorpb.FieldDescriptorProto_Type) *descriptorpb.FieldDescriptorProto {
		return &descriptorpb.FieldDescriptorProto{
			Name:   proto.String(name),
			Number: proto.Int32(number),
			Label:  optional,
			Type:   kind.Enum(),
		}
	}
	message := func(name string, number int32, typeName string, label *descriptorpb.FieldDescriptorProto_Label) *descriptorpb.FieldDescriptorProto {
		return &descriptorpb.FieldDescriptorProto{
			Name:     proto.String(name),
			Number:   proto.Int32(number),
			Label:    label,
			Type:     descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum(),
			TypeName: proto.String(".nvidia.riva.asr." + typeName),
		}
	}
	inOneof := func(field *descriptorpb.FieldDescriptorProto) *descriptorpb.FieldDescriptorProto {
		field.OneofIndex = proto.Int32(0)
		return field
	}

	phrases := scalar("phrases", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING)
	phrases.Label = repeated

	return &descriptorpb.FileDescriptorProto{
		Name:    proto.String("clipthat/riva_asr_subset.proto"),
		Package: proto.String("nvidia.riva.asr"),
		Syntax:  proto.String("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{
			{
				Name: proto.String("SpeechContext"),
				Field: []*descriptorpb.FieldDescriptorProto{
					phrases,
					scalar("boost", 4, descriptorpb.FieldDescriptorProto_TYPE_FLOAT),
				},
			},
			{
				Name: proto.String("RecognitionConfig"),
				Field: []*descriptorpb.FieldDescriptorProto{
					scalar("encoding", 1, descriptorpb.FieldDescriptorProto_TYPE_INT32),
					scalar("sample_rate_hertz", 2, descriptorpb.FieldDescriptorProto_TYPE_INT32),
					scalar("language_code", 3, descriptorpb.FieldDescriptorProto_TYPE_STRING),
					scalar("max_alternatives", 4, descriptorpb.FieldDescriptorProto_TYPE_INT32),
					message("speech_contexts", 6, "SpeechContext", repeated),
					scalar("audio_channel_count", 7, descriptorpb.FieldDescriptorProto_TYPE_INT32),
					scalar("enable_automatic_punctuation", 11, descriptorpb.FieldDescriptorProto_TYPE_BOOL),
					scalar("model", 13, descriptorpb.FieldDescriptorProto_TYPE_STRING),
				},
			},
			{
				Name: proto.String("StreamingRecognitionConfig"),
				Field: []*descriptorpb.FieldDescriptorProto{
					message("config", 1, "RecognitionConfig", optional),
					scalar("interim_results", 2, descriptorpb.FieldDescriptorProto_TYPE_BOOL),
				},
			},
			{
				Name: proto.String("StreamingRecognizeRequest"),
				Field: []*descriptorpb.FieldDescriptorProto{
					inOneof(message("streaming_config", 1, "StreamingRecognitionConfig", optional)),
					inOneof(scalar("audio_content", 2, descriptorpb.FieldDescriptorProto_TYPE_BYTES)),
				},
				OneofDecl: []*descriptorpb.OneofDescriptorProto{{Name: proto.String("streaming_request")}},
			},
			{
				Name: proto.String("SpeechRecognitionAlternative"),
				Field: []*descriptorpb.FieldDescriptorProto{
					scalar("transcript", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
					scalar("confidence", 2, descriptorpb.FieldDescriptorProto_TYPE_FLOAT),
				},
			},
			{
				Name: proto.String("StreamingRecognitionResult"),
				Field: []*descriptorpb.FieldDescriptorProto{
					message("alternatives", 1, "SpeechRecognitionAlternative", repeated),
					scalar("is_final", 2, descriptorpb.FieldDescriptorProto_TYPE_BOOL),
					scalar("stability", 3, descriptorpb.FieldDescriptorProto_TYPE_FLOAT),
				},
			},
			{
				Name: proto.String("StreamingRecognizeResponse"),
				Field: []*descriptorpb.FieldDescriptorProto{
					message("results", 1, "StreamingRecognitionResult", repeated),
				},
			},
		},
		Service: []*descriptorpb.ServiceDescriptorProto{{
			Name: proto.String("RivaSpeechRecognition"),
			Method: []*descriptorpb.MethodDescriptorProto{{
				Name:            proto.String(streamingMethod),
				InputType:       proto.String(".nvidia.riva.asr.StreamingRecognizeRequest"),
				OutputType:      proto.String(".nvidia.riva.asr.StreamingRecognizeResponse"),
				ClientStreaming: proto.Bool(true),
				ServerStreaming: proto.Bool(true),
			}},
		}},
	}
}

// configRequest builds the first request of a stream.
func (s *schema) configRequest(cfg StreamConfig) *dynamicpb.Message {
	recognition := dynamicpb.NewMessage(s.recognitionConfig)
	setField(recognition, "encoding", protoreflect.ValueOfInt32(encodingLinearPCM))
	setField(recognition, "sample_rate_hertz", protoreflect.ValueOfInt32(sampleRateHertz))
	setField(recognition, "language_code", protoreflect.ValueOfString(cfg.LanguageCode))
	setField(recognition, "max_alternatives", protoreflect.ValueOfInt32(1))
	setField(recognition, "audio_channel_count", protoreflect.ValueOfInt32(1))
	setField(recognition, "enable_automatic_punctuation", protoreflect.ValueOfBool(false))
	if cfg.Model != "" {
		setField(recognition, "model", protoreflect.ValueOfString(cfg.Model))
	}

	if len(cfg.Phrases) > 0 {
		contexts := recognition.Mutable(s.recognitionConfig.Fields().ByName("speech_contexts")).List()
		speechContext := dynamicpb.NewMessage(s.speechContext)
		phraseList := speechContext.Mutable(s.speechContext.Fields().ByName("phrases")).List()
		for _, phrase := range cfg.Phrases {
			phraseList.Append(protoreflect.ValueOfString(phrase))
		}
		setField(speechContext, "boost", protoreflect.ValueOfFloat32(cfg.Boost))
		contexts.Append(protoreflect.ValueOfMessage(speechContext))
	}

	streaming := dynamicpb.NewMessage(s.streamingConfig)
	setField(streaming, "config", protoreflect.ValueOfMessage(recognition))
	setField(streaming, "interim_results", protoreflect.ValueOfBool(true))

	req := dynamicpb.NewMessage(s.request)
	setField(req, "streaming_config", protoreflect.ValueOfMessage(streaming))
	return req
}

// audioRequest wraps one PCM chunk.
func (s *schema) audioRequest(chunk []byte) *dynamicpb.Message {
	req := dynamicpb.NewMessage(s.request)
	setField(req, "audio_content", protoreflect.ValueOfBytes(chunk))
	return req
}

type recognitionResult struct {
	Transcript string
	IsFinal    bool
	Stability  float32
}

// results extracts the first alternative of every result in a response.
func (s *schema) results(resp *dynamicpb.Message) []recognitionResult {
	resultsField := s.response.Fields().ByName("results")
	alternativesField := s.recognitionResult.Fields().ByName("alternatives")
	isFinalField := s.recognitionResult.Fields().ByName("is_final")
	stabilityField := s.recognitionResult.Fields().ByName("stability")
	transcriptField := s.recognitionAltern.Fields().ByName("transcript")

	list := resp.Get(resultsField).List()
	out := make([]recognitionResult, 0, list.Len())
	for i := 0; i < list.Len(); i++ {
		result := list.Get(i).Message()
		alternatives := result.Get(alternativesField).List()
		if alternatives.Len() == 0 {
			continue
		}
		out = append(out, recognitionResult{
			Transcript: alternatives.Get(0).Message().Get(transcriptField).String(),
			IsFinal:    result.Get(isFinalField).Bool(),
			Stability:  float32(result.Get(stabilityField).Float()),
		})
	}
	return out
}

func setField(msg *dynamicpb.Message, name protoreflect.Name, value protoreflect.Value) {
	msg.Set(msg.Descriptor().Fields().ByName(name), value)
}
