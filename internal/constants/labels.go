package constants

// Default display labels. They match what the QQ side shows its users.
const (
	LabelEveryone       = "全体成员"
	LabelImage          = "图片"
	LabelVideo          = "[暂不支持视频消息]"
	LabelVoice          = "[暂不支持语音消息]"
	LabelForward        = "[暂不支持合并转发消息]"
	LabelDocument       = "[暂不支持的文件]"
	LabelUnknownFace    = "[face:%s]"
	LabelFileSize       = "大小"
	LabelFileName       = "文件"
	LabelUnsupported    = "[不支持的消息]"
	LabelVideoLink      = "视频"
	LabelChatIDResponse = "Chat ID"
)
