package simulator

import (
	"bytes"
	"text/template"

	"github.com/rfd-conformance/rfd-test-harness/rfd"
)

var wsdlTemplate = template.Must(template.New("wsdl").Parse(`<?xml version="1.0" encoding="UTF-8"?>
<definitions xmlns="http://schemas.xmlsoap.org/wsdl/"
    xmlns:soap12="http://schemas.xmlsoap.org/wsdl/soap12/"
    xmlns:wsaw="http://www.w3.org/2006/05/addressing/wsdl"
    xmlns:rfd="urn:ihe:iti:rfd:2007"
    targetNamespace="urn:ihe:iti:rfd:2007"
    name="{{.Service}}">
{{- range .Operations}}
  <message name="{{.Name}}Request_Message"><part name="body" element="rfd:{{.Name}}Request"/></message>
  <message name="{{.Name}}Response_Message"><part name="body" element="rfd:{{.Name}}Response"/></message>
{{- end}}
  <portType name="{{.Service}}_PortType">
{{- range .Operations}}
    <operation name="{{.Name}}">
      <input message="rfd:{{.Name}}Request_Message" wsaw:Action="{{.Action}}"/>
      <output message="rfd:{{.Name}}Response_Message" wsaw:Action="{{.ResponseAction}}"/>
    </operation>
{{- end}}
  </portType>
  <binding name="{{.Service}}_Binding_Soap12" type="rfd:{{.Service}}_PortType">
    <soap12:binding style="document" transport="http://schemas.xmlsoap.org/soap/http"/>
{{- range .Operations}}
    <operation name="{{.Name}}">
      <soap12:operation soapAction="{{.Action}}"/>
      <input><soap12:body use="literal"/></input>
      <output><soap12:body use="literal"/></output>
    </operation>
{{- end}}
  </binding>
  <service name="{{.Service}}_Service">
    <port name="{{.Service}}_Port_Soap12" binding="rfd:{{.Service}}_Binding_Soap12">
      <soap12:address location="{{html .Location}}"/>
    </port>
  </service>
</definitions>
`))

type wsdlOperation struct {
	Name           string
	Action         string
	ResponseAction string
}

// WSDL returns a WSDL 1.1 document describing the operations of an actor at the given location.
func WSDL(actor rfd.Actor, location string) ([]byte, error) {
	data := struct {
		Service    string
		Location   string
		Operations []wsdlOperation
	}{Service: actor.ServiceName(), Location: location}
	for _, t := range actor.Transactions() {
		data.Operations = append(data.Operations, wsdlOperation{
			Name:           t.Operation(),
			Action:         t.Action(),
			ResponseAction: t.ResponseAction(),
		})
	}
	var buf bytes.Buffer
	if err := wsdlTemplate.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
