package facemap

// Closest emoji for the classic face set
var builtin = map[string]string{
	"0":   "😲",
	"1":   "😦",
	"2":   "😍",
	"3":   "😳",
	"4":   "😎",
	"5":   "😭",
	"6":   "☺️",
	"7":   "🤐",
	"8":   "😴",
	"9":   "😭",
	"10":  "😅",
	"11":  "😡",
	"12":  "😜",
	"13":  "😁",
	"14":  "🙂",
	"15":  "🙁",
	"16":  "😎",
	"18":  "😫",
	"19":  "🤮",
	"20":  "🤭",
	"21":  "😊",
	"22":  "🙄",
	"23":  "😤",
	"24":  "😋",
	"25":  "😪",
	"26":  "😱",
	"27":  "😓",
	"28":  "😄",
	"29":  "😌",
	"30":  "💪",
	"31":  "🤬",
	"32":  "❓",
	"33":  "🤫",
	"34":  "😵",
	"35":  "😖",
	"36":  "😞",
	"37":  "💀",
	"38":  "🔨",
	"39":  "👋",
	"41":  "🥶",
	"42":  "💑",
	"43":  "🤸",
	"46":  "🐷",
	"49":  "🤗",
	"53":  "🎂",
	"55":  "💣",
	"56":  "🔪",
	"59":  "💩",
	"60":  "☕",
	"63":  "🌹",
	"64":  "🥀",
	"66":  "❤️",
	"67":  "💔",
	"74":  "☀️",
	"75":  "🌙",
	"76":  "👍",
	"77":  "👎",
	"78":  "🤝",
	"79":  "✌️",
	"85":  "😘",
	"89":  "🍉",
	"96":  "😰",
	"97":  "😅",
	"98":  "👃",
	"99":  "👏",
	"100": "😳",
	"101": "😏",
	"102": "😤",
	"103": "😤",
	"104": "🥱",
	"105": "😒",
	"106": "🥺",
	"107": "😢",
	"108": "😈",
	"109": "😚",
	"110": "😨",
	"111": "🥺",
	"112": "🔪",
	"114": "🏀",
	"116": "😘",
	"118": "🙏",
	"119": "👉",
	"120": "✊",
	"121": "👎",
	"122": "🤟",
	"123": "🙅",
	"124": "👌",
	"144": "🎉",
	"147": "🍭",
	"171": "🍵",
	"173": "😭",
	"174": "😑",
	"175": "😝",
	"176": "😕",
	"178": "😏",
	"179": "🐶",
	"180": "😯",
	"181": "😜",
	"182": "😂",
	"183": "💅",
	"212": "🤔",
	"264": "🤦",
	"265": "🙈",
	"266": "😯",
	"268": "❓",
	"269": "👀",
	"270": "😶",
	"271": "🍉",
	"272": "🙂",
	"273": "🍋",
	"277": "🐶",
	"281": "😄",
	"282": "🫡",
	"284": "😐",
	"285": "🐟",
	"287": "😮",
	"289": "👀",
	"294": "🤩",
	"297": "🙏",
	"298": "💰",
	"299": "🐮",
	"305": "😘",
	"306": "🐂",
	"307": "🐱",
	"314": "🧐",
	"315": "💪",
	"318": "🤩",
	"319": "🫶",
	"320": "🎉",
	"322": "🙅",
	"324": "🍬",
	"326": "😠",
}
