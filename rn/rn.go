// Package rn holds the command grammar of RN2483/RN2903 LoRaWAN modems:
// the literal tokens of the sys/mac/radio command families, the replies the
// modem answers with, and helpers to render commands and parse replies.
package rn

const (
	// Terminal Control
	CRLF = "\r\n"
	LF   = '\n'
	CR   = '\r'

	// Command categories
	Sys   = "sys"
	Mac   = "mac"
	Radio = "radio"

	// Verbs
	Get          = "get"
	Set          = "set"
	Reset        = "reset"
	Sleep        = "sleep"
	EraseFW      = "eraseFW"
	FactoryReset = "factoryRESET"
	Tx           = "tx"
	Join         = "join"
	Save         = "save"
	ForceEnable  = "forceENABLE"
	Pause        = "pause"
	Resume       = "resume"

	// sys get/set parameters
	SysVer    = "ver"
	SysVdd    = "vdd"
	SysHwEUI  = "hweui"
	SysNvm    = "nvm"
	SysPinDig = "pindig"

	// mac get/set parameters
	MacDevAddr  = "devaddr"
	MacDevEUI   = "deveui"
	MacAppEUI   = "appeui"
	MacNwkSKey  = "nwkskey"
	MacAppSKey  = "appskey"
	MacAppKey   = "appkey"
	MacPwrIdx   = "pwridx"
	MacDR       = "dr"
	MacADR      = "adr"
	MacBat      = "bat"
	MacRetX     = "retx"
	MacLinkChk  = "linkchk"
	MacRxDelay1 = "rxdelay1"
	MacRxDelay2 = "rxdelay2"
	MacBand     = "band"
	MacAR       = "ar"
	MacRx2      = "rx2"
	MacCh       = "ch"
	MacGwNb     = "gwnb"
	MacMrgn     = "mrgn"
	MacStatus   = "status"

	// mac set ch sub-parameters
	ChDutyCycle = "dcycle"
	ChDRRange   = "drrange"
	ChFreq      = "freq"
	ChStatus    = "status"

	// Join modes
	JoinOTAA = "otaa"
	JoinABP  = "abp"

	// Tx types
	TxConfirmed   = "cnf"
	TxUnconfirmed = "uncnf"

	// radio get parameters
	RadioBW    = "bw"
	RadioPrLen = "prlen"
	RadioCRC   = "crc"
	RadioCR    = "cr"
	RadioSF    = "sf"

	// Response Codes
	OK       = "ok"
	On       = "on"
	Off      = "off"
	Accepted = "accepted"
	MacTxOK  = "mac_tx_ok"
	MacRx    = "mac_rx"
	RN2483   = "RN2483"

	// Error replies
	InvalidParam    = "invalid_param"
	Denied          = "denied"
	NotJoined       = "not_joined"
	NoFreeChannel   = "no_free_ch"
	Silent          = "silent"
	FrameCounterErr = "frame_counter_err_rejoin_needed"
	Busy            = "busy"
	MacPaused       = "mac_paused"
	InvalidDataLen  = "invalid_data_len"
	MacErr          = "mac_err"
	KeysNotInit     = "keys_not_init"
)

// AutoBaudBreak is written ahead of a probe command to let the modem
// re-detect the UART baud rate: a break byte followed by 0x55.
var AutoBaudBreak = []byte{0x00, 0x55}

// Known error replies and a short description, used to annotate diagnostics.
var errorReplies = map[string]string{
	InvalidParam:    "parameter rejected by modem",
	Denied:          "join request denied by network",
	NotJoined:       "network not joined",
	NoFreeChannel:   "all channels busy (duty cycle)",
	Silent:          "modem in silent state",
	FrameCounterErr: "frame counter rolled over, rejoin needed",
	Busy:            "MAC state is not idle",
	MacPaused:       "MAC is paused",
	InvalidDataLen:  "payload too long for data rate",
	MacErr:          "no acknowledgement for confirmed uplink",
	KeysNotInit:     "keys not configured",
}

// Describe returns a human readable description of a known error reply.
func Describe(reply string) (string, bool) {
	d, ok := errorReplies[reply]
	return d, ok
}

type ResponseType int

const (
	TypeOther   ResponseType = iota // anything not listed below
	TypeTxOK                        // mac_tx_ok
	TypeRx                          // mac_rx <port> <data>
	TypeError                       // a known error reply
)
