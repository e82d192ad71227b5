package gxserial2tcp

// --------------------------------------------------------------------------
//
//	Gurux Ltd
//
// Filename:        $HeadURL$
//
// Version:         $Revision$,
//
//	$Date$
//	$Author$
//
// # Copyright (c) Gurux Ltd
//
// ---------------------------------------------------------------------------
//
//	DESCRIPTION
//
// This file is a part of Gurux Device Framework.
//
// Gurux Device Framework is Open Source software; you can redistribute it
// and/or modify it under the terms of the GNU General Public License
// as published by the Free Software Foundation; version 2 of the License.
// Gurux Device Framework is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU General Public License for more details.
//
// More information of Gurux products: https://www.gurux.org
//
// This code is licensed under the GNU General Public License v2.
// Full text may be retrieved at http://www.gnu.org/licenses/gpl-2.0.txt
// ---------------------------------------------------------------------------

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Catalog keys of the log messages.
const (
	msgStarting          = "msg.starting_relay"
	msgStopped           = "msg.relay_stopped"
	msgOpening           = "msg.opening_port"
	msgOpenFailed        = "msg.open_failed"
	msgAvailablePorts    = "msg.available_ports"
	msgWaiting           = "msg.waiting_for_client"
	msgAcceptFailed      = "msg.accept_failed"
	msgConnected         = "msg.connected"
	msgCloneFailed       = "msg.clone_failed"
	msgTCPReadFailed     = "msg.tcp_read_failed"
	msgSerialWriteFailed = "msg.serial_write_failed"
	msgSerialReadFailed  = "msg.serial_read_failed"
	msgTCPWriteFailed    = "msg.tcp_write_failed"
	msgClientClosed      = "msg.client_closed"
	msgRelayExited       = "msg.relay_exited"
	msgReconnecting      = "msg.reconnecting"
)

//nolint:errcheck
func init() {
	// --- English (default) ---
	message.SetString(language.AmericanEnglish, msgStarting, "Starting relay")
	message.SetString(language.AmericanEnglish, msgStopped, "Relay stopped")
	message.SetString(language.AmericanEnglish, msgOpening, "Opening serial port")
	message.SetString(language.AmericanEnglish, msgOpenFailed, "Failed to open serial port")
	message.SetString(language.AmericanEnglish, msgAvailablePorts, "Available serial ports")
	message.SetString(language.AmericanEnglish, msgWaiting, "Waiting for a connection")
	message.SetString(language.AmericanEnglish, msgAcceptFailed, "Failed to accept a connection")
	message.SetString(language.AmericanEnglish, msgConnected, "Got a connection, beginning relay")
	message.SetString(language.AmericanEnglish, msgCloneFailed, "Failed to duplicate serial port handle")
	message.SetString(language.AmericanEnglish, msgTCPReadFailed, "Error reading from TCP stream")
	message.SetString(language.AmericanEnglish, msgSerialWriteFailed, "Error writing to serial port")
	message.SetString(language.AmericanEnglish, msgSerialReadFailed, "Error reading from serial port")
	message.SetString(language.AmericanEnglish, msgTCPWriteFailed, "Error writing to TCP stream")
	message.SetString(language.AmericanEnglish, msgClientClosed, "Client closed the connection")
	message.SetString(language.AmericanEnglish, msgRelayExited, "Relay exited")
	message.SetString(language.AmericanEnglish, msgReconnecting, "Retrying")

	// --- German (de) ---
	message.SetString(language.German, msgStarting, "Relais wird gestartet")
	message.SetString(language.German, msgStopped, "Relais gestoppt")
	message.SetString(language.German, msgOpening, "Serieller Port wird geöffnet")
	message.SetString(language.German, msgOpenFailed, "Serieller Port konnte nicht geöffnet werden")
	message.SetString(language.German, msgAvailablePorts, "Verfügbare serielle Ports")
	message.SetString(language.German, msgWaiting, "Warte auf eine Verbindung")
	message.SetString(language.German, msgAcceptFailed, "Verbindung konnte nicht angenommen werden")
	message.SetString(language.German, msgConnected, "Verbunden, Weiterleitung beginnt")
	message.SetString(language.German, msgCloneFailed, "Handle des seriellen Ports konnte nicht dupliziert werden")
	message.SetString(language.German, msgTCPReadFailed, "Fehler beim Lesen vom TCP-Stream")
	message.SetString(language.German, msgSerialWriteFailed, "Fehler beim Schreiben auf den seriellen Port")
	message.SetString(language.German, msgSerialReadFailed, "Fehler beim Lesen vom seriellen Port")
	message.SetString(language.German, msgTCPWriteFailed, "Fehler beim Schreiben auf den TCP-Stream")
	message.SetString(language.German, msgClientClosed, "Client hat die Verbindung geschlossen")
	message.SetString(language.German, msgRelayExited, "Weiterleitung beendet")
	message.SetString(language.German, msgReconnecting, "Neuer Versuch")

	// --- Finnish (fi) ---
	message.SetString(language.Finnish, msgStarting, "Käynnistetään välitys")
	message.SetString(language.Finnish, msgStopped, "Välitys pysäytetty")
	message.SetString(language.Finnish, msgOpening, "Avataan sarjaportti")
	message.SetString(language.Finnish, msgOpenFailed, "Sarjaportin avaaminen epäonnistui")
	message.SetString(language.Finnish, msgAvailablePorts, "Käytettävissä olevat sarjaportit")
	message.SetString(language.Finnish, msgWaiting, "Odotetaan yhteyttä")
	message.SetString(language.Finnish, msgAcceptFailed, "Yhteyden vastaanotto epäonnistui")
	message.SetString(language.Finnish, msgConnected, "Yhteys muodostettu, välitys alkaa")
	message.SetString(language.Finnish, msgCloneFailed, "Sarjaportin kahvan kopiointi epäonnistui")
	message.SetString(language.Finnish, msgTCPReadFailed, "Virhe luettaessa TCP-yhteydestä")
	message.SetString(language.Finnish, msgSerialWriteFailed, "Virhe kirjoitettaessa sarjaporttiin")
	message.SetString(language.Finnish, msgSerialReadFailed, "Virhe luettaessa sarjaportista")
	message.SetString(language.Finnish, msgTCPWriteFailed, "Virhe kirjoitettaessa TCP-yhteyteen")
	message.SetString(language.Finnish, msgClientClosed, "Asiakas sulki yhteyden")
	message.SetString(language.Finnish, msgRelayExited, "Välitys päättyi")
	message.SetString(language.Finnish, msgReconnecting, "Yritetään uudelleen")

	// --- Swedish (sv) ---
	message.SetString(language.Swedish, msgStarting, "Startar relä")
	message.SetString(language.Swedish, msgStopped, "Relä stoppat")
	message.SetString(language.Swedish, msgOpening, "Öppnar seriell port")
	message.SetString(language.Swedish, msgOpenFailed, "Det gick inte att öppna seriell port")
	message.SetString(language.Swedish, msgAvailablePorts, "Tillgängliga seriella portar")
	message.SetString(language.Swedish, msgWaiting, "Väntar på en anslutning")
	message.SetString(language.Swedish, msgAcceptFailed, "Det gick inte att ta emot en anslutning")
	message.SetString(language.Swedish, msgConnected, "Ansluten, vidarebefordran börjar")
	message.SetString(language.Swedish, msgCloneFailed, "Det gick inte att duplicera portens handtag")
	message.SetString(language.Swedish, msgTCPReadFailed, "Fel vid läsning från TCP-strömmen")
	message.SetString(language.Swedish, msgSerialWriteFailed, "Fel vid skrivning till seriell port")
	message.SetString(language.Swedish, msgSerialReadFailed, "Fel vid läsning från seriell port")
	message.SetString(language.Swedish, msgTCPWriteFailed, "Fel vid skrivning till TCP-strömmen")
	message.SetString(language.Swedish, msgClientClosed, "Klienten stängde anslutningen")
	message.SetString(language.Swedish, msgRelayExited, "Vidarebefordran avslutad")
	message.SetString(language.Swedish, msgReconnecting, "Försöker igen")
}
